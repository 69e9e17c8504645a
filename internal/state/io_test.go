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

package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wraperrors "github.com/opsrelay/wrapup/pkg/errors"
)

func TestWriteJSON_ReadJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	root := NewRoot(dir)
	path := root.SummaryFile("sess1", "ws1")

	want := SessionSummary{
		CorrelationID:      "01HQZX8K3V2R5T9NABCDEFGHJK",
		SessionID:          "sess1",
		WorkspacePath:      "/home/user/project",
		WorkspaceID:        "ws1",
		Timestamp:          time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		DurationSeconds:    42.5,
		GitStatus:          GitStatus{Branch: "main", ModifiedFiles: 3},
		AvailableWorkflows: []string{"fix-links", "run-tests"},
	}

	require.NoError(t, WriteJSON(path, &want))

	var got SessionSummary
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, want.CorrelationID, got.CorrelationID)
	assert.Equal(t, want.GitStatus, got.GitStatus)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, want.AvailableWorkflows, got.AvailableWorkflows)
}

func TestReadJSON_MissingRequiredField_IsSchemaInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")
	require.NoError(t, WriteJSON(path, &SessionSummary{SessionID: "only-this"}))

	var got SessionSummary
	err := ReadJSON(path, &got)
	require.Error(t, err)
	assert.ErrorIs(t, err, wraperrors.ErrSchemaInvalid)
}

func TestReadJSON_MalformedJSON_IsSchemaInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session_id": `), 0o600))

	var got SessionSummary
	err := ReadJSON(path, &got)
	require.Error(t, err)
	assert.ErrorIs(t, err, wraperrors.ErrSchemaInvalid)
}

func TestReadJSON_WithoutValidatable_SkipsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.json")
	require.NoError(t, WriteJSON(path, map[string]int{"n": 1}))

	var got map[string]int
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, 1, got["n"])
}
