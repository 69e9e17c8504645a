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

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/wrapup/internal/state"
)

const testRegistry = `[
	{"id": "fix-links", "name": "Fix broken links", "icon": "🔗", "category": "quality",
	 "prompt_template": "Fix the broken links: {{ .LycheeStatus.Details }}",
	 "triggers": ["lychee_errors"]},
	{"id": "commit-changes", "name": "Commit changes", "icon": "📝", "category": "git",
	 "prompt_template": "Commit the modified files.",
	 "triggers": ["git_modified"]},
	{"id": "summarize", "name": "Summarize session", "icon": "📋", "category": "meta",
	 "prompt_template": "Summarize what happened.",
	 "triggers": ["always"]}
]`

func writeRegistry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflows.json")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o644))
	return path
}

func TestLoadWorkflows_ParsesAllEntries(t *testing.T) {
	defs, err := LoadWorkflows(writeRegistry(t))
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "fix-links", defs[0].ID)
}

func TestLoadWorkflows_RejectsMissingPromptTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflows.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","name":"X","triggers":["always"]}]`), 0o644))

	_, err := LoadWorkflows(path)
	assert.Error(t, err)
}

func TestFilterEligible_PreservesDeclarationOrder(t *testing.T) {
	defs, err := LoadWorkflows(writeRegistry(t))
	require.NoError(t, err)

	summary := state.SessionSummary{
		LycheeStatus: state.LycheeStatus{ErrorCount: 2},
		GitStatus:    state.GitStatus{ModifiedFiles: 1},
	}

	eligible := FilterEligible(defs, summary)
	require.Len(t, eligible, 3)
	assert.Equal(t, "fix-links", eligible[0].ID)
	assert.Equal(t, "commit-changes", eligible[1].ID)
	assert.Equal(t, "summarize", eligible[2].ID)
}

func TestFilterEligible_OnlyAlwaysWhenCleanSession(t *testing.T) {
	defs, err := LoadWorkflows(writeRegistry(t))
	require.NoError(t, err)

	summary := state.SessionSummary{}
	eligible := FilterEligible(defs, summary)
	require.Len(t, eligible, 1)
	assert.Equal(t, "summarize", eligible[0].ID)
}

func TestFilterEligible_IsIdempotent(t *testing.T) {
	defs, err := LoadWorkflows(writeRegistry(t))
	require.NoError(t, err)
	summary := state.SessionSummary{GitStatus: state.GitStatus{StagedFiles: 1}}

	first := FilterEligible(defs, summary)
	second := FilterEligible(defs, summary)
	assert.Equal(t, first, second)
}

func TestByID_IndexesEveryWorkflow(t *testing.T) {
	defs, err := LoadWorkflows(writeRegistry(t))
	require.NoError(t, err)

	index := ByID(defs)
	assert.Contains(t, index, "fix-links")
	assert.Contains(t, index, "commit-changes")
	assert.Contains(t, index, "summarize")
}

func TestLoadWorkspaces_MissingFileYieldsEmptyMap(t *testing.T) {
	dir := t.TempDir()
	ws, err := LoadWorkspaces(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestWorkspaces_TouchThenSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	ws := Workspaces{}
	ws.Touch("abc12345", "📁", "my-project", "/home/user/my-project")
	require.NoError(t, ws.Save(path))

	loaded, err := LoadWorkspaces(path)
	require.NoError(t, err)
	require.Contains(t, loaded, "abc12345")
	assert.Equal(t, "my-project", loaded["abc12345"].Name)
}
