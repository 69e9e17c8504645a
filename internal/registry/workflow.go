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

// Package registry loads the read-only workflow and workspace registries
// and evaluates a workflow's trigger predicates against a session summary,
// grounded on the teacher's internal/triggers type definitions (closed set
// of named trigger kinds, JSON-tagged structs with an `Enabled`/eligibility
// concept) adapted to the fixed three-predicate vocabulary this system
// uses instead of the teacher's open trigger-kind set.
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opsrelay/wrapup/internal/state"
)

// Trigger names the closed vocabulary of eligibility predicates a workflow
// may declare.
type Trigger string

const (
	TriggerLycheeErrors Trigger = "lychee_errors"
	TriggerGitModified  Trigger = "git_modified"
	TriggerAlways       Trigger = "always"
)

// WorkflowDefinition is one entry of workflows.json.
type WorkflowDefinition struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Icon              string    `json:"icon"`
	Description       string    `json:"description,omitempty"`
	Category          string    `json:"category,omitempty"`
	PromptTemplate    string    `json:"prompt_template"`
	Triggers          []Trigger `json:"triggers"`
	Dependencies      []string  `json:"dependencies,omitempty"`
	EstimatedDuration string    `json:"estimated_duration,omitempty"`
	RiskLevel         string    `json:"risk_level,omitempty"`
	Version           string    `json:"version,omitempty"`
}

// Validate checks the minimal required fields spec.md §4.4 names:
// {id, name, prompt_template, triggers}.
func (w WorkflowDefinition) Validate() error {
	switch {
	case w.ID == "":
		return fmt.Errorf("workflow missing id")
	case w.Name == "":
		return fmt.Errorf("workflow %q missing name", w.ID)
	case w.PromptTemplate == "":
		return fmt.Errorf("workflow %q missing prompt_template", w.ID)
	case len(w.Triggers) == 0:
		return fmt.Errorf("workflow %q missing triggers", w.ID)
	}
	return nil
}

// workflowsFile is the on-disk shape of workflows.json: a top-level array,
// matching the teacher's convention of a plain JSON array for flat
// registries rather than a wrapping object.
type workflowsFile = []WorkflowDefinition

// LoadWorkflows reads and parses the workflow registry. Unknown JSON
// fields are preserved by Go's default unmarshal-into-struct behavior
// (simply ignored), matching spec.md §4.4 "unknown fields are preserved
// but ignored" as far as this reader's own view is concerned.
func LoadWorkflows(path string) ([]WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow registry %s: %w", path, err)
	}
	var defs workflowsFile
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing workflow registry %s: %w", path, err)
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("invalid workflow registry entry: %w", err)
		}
	}
	return defs, nil
}

// Eligible reports whether any of def's triggers holds for summary
// (spec.md §4.2 "a workflow is eligible when any predicate holds").
func Eligible(def WorkflowDefinition, summary state.SessionSummary) bool {
	for _, t := range def.Triggers {
		if evaluate(t, summary) {
			return true
		}
	}
	return false
}

// evaluate implements the three closed-vocabulary predicates. An unknown
// trigger name never matches, rather than erroring, so a registry entry
// typo disables that trigger instead of crashing the reader.
func evaluate(t Trigger, summary state.SessionSummary) bool {
	switch t {
	case TriggerLycheeErrors:
		return summary.LycheeStatus.ErrorCount > 0
	case TriggerGitModified:
		return summary.GitStatus.ModifiedFiles+summary.GitStatus.StagedFiles > 0
	case TriggerAlways:
		return true
	default:
		return false
	}
}

// FilterEligible returns the subset of defs eligible for summary,
// preserving registry declaration order (spec.md §4.1 step 5,
// §4.2 step 3).
func FilterEligible(defs []WorkflowDefinition, summary state.SessionSummary) []WorkflowDefinition {
	var eligible []WorkflowDefinition
	for _, def := range defs {
		if Eligible(def, summary) {
			eligible = append(eligible, def)
		}
	}
	return eligible
}

// ByID indexes defs for O(1) lookup by workflow id, used by the
// orchestrator when resolving a selection's workflow_ids.
func ByID(defs []WorkflowDefinition) map[string]WorkflowDefinition {
	index := make(map[string]WorkflowDefinition, len(defs))
	for _, def := range defs {
		index[def.ID] = def
	}
	return index
}

// workspaceEntry is one value of registry.json's workspace → entry map.
type workspaceEntry struct {
	Icon string `json:"icon"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Workspaces is the parsed form of registry.json: workspace hash to
// display metadata (spec.md §6).
type Workspaces map[string]workspaceEntry

// LoadWorkspaces reads registry.json. A missing file yields an empty map
// rather than an error, since a fresh state directory has no workspaces
// registered yet.
func LoadWorkspaces(path string) (Workspaces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Workspaces{}, nil
		}
		return nil, fmt.Errorf("reading workspace registry %s: %w", path, err)
	}
	var ws Workspaces
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("parsing workspace registry %s: %w", path, err)
	}
	return ws, nil
}

// Touch records workspaceID's display metadata, inserting or updating it.
func (w Workspaces) Touch(workspaceID, icon, name, path string) {
	w[workspaceID] = workspaceEntry{Icon: icon, Name: name, Path: path}
}

// Lookup resolves workspaceID to its display icon and name. ok is false
// when the workspace has never been registered, in which case callers
// fall back to the raw workspace_id (spec.md §4.2.2 step 2).
func (w Workspaces) Lookup(workspaceID string) (icon, name string, ok bool) {
	entry, found := w[workspaceID]
	if !found {
		return "", "", false
	}
	return entry.Icon, entry.Name, true
}

// Save atomically writes w back to path via state.WriteJSON.
func (w Workspaces) Save(path string) error {
	return state.WriteJSON(path, w)
}
