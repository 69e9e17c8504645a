// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/opsrelay/wrapup/internal/state"
)

// templateContext is the fixed set of fields available to a workflow's
// prompt_template (spec.md §4.3 step 2a).
type templateContext struct {
	WorkspacePath string
	SessionID     string
	CorrelationID string
	GitStatus     state.GitStatus
	LycheeStatus  state.LycheeStatus
	UserPrompt    string
	LastResponse  string
}

// renderPrompt executes tmplText as a text/template against selection's
// fields. A malformed template or a render-time error fails only the one
// workflow it belongs to (spec.md §4.3 step 2a, §8 scenario 4).
func renderPrompt(tmplText string, selection state.WorkflowSelection) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}

	ctx := templateContext{
		WorkspacePath: selection.WorkspacePath,
		SessionID:     selection.SessionID,
		CorrelationID: selection.CorrelationID,
		GitStatus:     selection.SummaryData.GitStatus,
		LycheeStatus:  selection.SummaryData.LycheeStatus,
		UserPrompt:    selection.SummaryData.UserPrompt,
		LastResponse:  selection.SummaryData.LastResponse,
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, ctx); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return sb.String(), nil
}
