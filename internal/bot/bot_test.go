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

package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/wrapup/internal/chatclient"
	"github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/state"
)

type fakeChat struct {
	sentTexts  []string
	editTexts  map[string]string
	sendID     int
	ackedTexts []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{editTexts: make(map[string]string)}
}

func (f *fakeChat) Send(ctx context.Context, chatID, text string, keyboard chatclient.Keyboard) (chatclient.MessageID, error) {
	f.sentTexts = append(f.sentTexts, text)
	f.sendID++
	return chatclient.MessageID{ChatID: chatID, MessageID: "m" + string(rune('0'+f.sendID))}, nil
}

func (f *fakeChat) Edit(ctx context.Context, id chatclient.MessageID, text string, keyboard chatclient.Keyboard) error {
	f.editTexts[id.MessageID] = text
	return nil
}

func (f *fakeChat) PollUpdates(ctx context.Context) ([]chatclient.Update, error) {
	return nil, nil
}

func (f *fakeChat) AckUpdate(ctx context.Context, id string, text string) error {
	f.ackedTexts = append(f.ackedTexts, text)
	return nil
}

func testBot(t *testing.T, chat *fakeChat, workflows []registry.WorkflowDefinition) (*Bot, state.Root) {
	t.Helper()
	dir := t.TempDir()
	root := state.NewRoot(dir)

	logCfg := log.DefaultConfig()
	logCfg.Output = os.Stderr
	logger := log.New(logCfg)

	b := New(Config{StateDir: dir, ChatID: "chat-1"}, chat, logger)
	b.workflows = workflows
	b.workspaces = registry.Workspaces{}
	b.summariesDirAbs, _ = filepath.Abs(root.SummariesDir())
	b.completionsDirAbs, _ = filepath.Abs(root.CompletionsDir())
	return b, root
}

func TestProcessSummary_SendsMenuAndPersistsCallbacks(t *testing.T) {
	chat := newFakeChat()
	workflows := []registry.WorkflowDefinition{
		{ID: "prune-legacy", Name: "Prune Legacy Code", PromptTemplate: "x", Triggers: []registry.Trigger{registry.TriggerAlways}},
	}
	b, root := testBot(t, chat, workflows)

	summary := state.SessionSummary{
		CorrelationID: "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		SessionID:     "sess-1",
		WorkspacePath: "/ws",
		WorkspaceID:   "abcd1234",
		Timestamp:     time.Now().UTC(),
		GitStatus:     state.GitStatus{Branch: "main"},
	}
	path := root.SummaryFile(summary.SessionID, summary.WorkspaceID)
	require.NoError(t, state.WriteJSON(path, &summary))

	b.processSummary(context.Background(), path)

	require.Len(t, chat.sentTexts, 1)
	assert.Contains(t, chat.sentTexts[0], "abcd1234")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(root.CallbacksDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, ok := b.messages.Get(summary.SessionID, summary.WorkspaceID)
	assert.True(t, ok)
}

func TestProcessSummary_MalformedFileSendsDiagnosticAndUnlinks(t *testing.T) {
	chat := newFakeChat()
	b, root := testBot(t, chat, nil)

	path := root.SummaryFile("sess-x", "wsx")
	require.NoError(t, os.MkdirAll(root.SummariesDir(), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"session_id": ""}`), 0o644))

	b.processSummary(context.Background(), path)

	require.Len(t, chat.sentTexts, 1)
	assert.Contains(t, chat.sentTexts[0], "malformed")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHandleCallback_MissingKeyTriggersExpiredToast(t *testing.T) {
	chat := newFakeChat()
	b, _ := testBot(t, chat, nil)

	b.handleCallback(context.Background(), callbackUpdate{ID: "update-1", CallbackData: "does-not-exist"})

	require.Len(t, chat.ackedTexts, 1)
	assert.Contains(t, chat.ackedTexts[0], "expired")
}

func TestHandleCallback_WritesSelectionAndEditsMessage(t *testing.T) {
	chat := newFakeChat()
	workflows := []registry.WorkflowDefinition{
		{ID: "prune-legacy", Name: "Prune Legacy Code", PromptTemplate: "x", Triggers: []registry.Trigger{registry.TriggerAlways}},
	}
	b, root := testBot(t, chat, workflows)
	b.orchestratorCommand = "" // leave unset; spawn failure is tolerated by the test via direct selection-file check

	summary := state.SessionSummary{CorrelationID: "cid-1", SessionID: "sess-1", WorkspacePath: "/ws", WorkspaceID: "ws1"}
	entry := state.CallbackEntry{WorkflowID: "prune-legacy", SessionID: "sess-1", WorkspaceID: "ws1", SummaryData: summary}
	require.NoError(t, state.WriteJSON(root.CallbackFile("key123"), &entry))

	msgID, err := chat.Send(context.Background(), "chat-1", "menu", nil)
	require.NoError(t, err)
	b.messages.Put("sess-1", "ws1", msgID)

	b.handleCallback(context.Background(), callbackUpdate{ID: "update-1", CallbackData: "key123"})

	assert.Contains(t, chat.editTexts[msgID.MessageID], "Starting")

	var selection state.WorkflowSelection
	require.NoError(t, state.ReadJSON(root.SelectionFile("sess-1", "ws1"), &selection))
	assert.Equal(t, []string{"prune-legacy"}, selection.WorkflowIDs)
}

func TestProcessCompletion_EditsTrackedMessageAndCleansUp(t *testing.T) {
	chat := newFakeChat()
	b, root := testBot(t, chat, nil)

	msgID, _ := chat.Send(context.Background(), "chat-1", "starting", nil)
	b.messages.Put("sess-1", "ws1", msgID)

	record := state.CompletionRecord{
		CorrelationID: "cid-1", SessionID: "sess-1", WorkspaceID: "ws1",
		WorkflowID: "prune-legacy", WorkflowName: "Prune Legacy Code",
		Status: state.StatusSuccess, DurationSeconds: 25.0,
	}
	path := root.CompletionFile("sess-1", "ws1")
	require.NoError(t, state.WriteJSON(path, &record))

	b.processCompletion(context.Background(), path)

	assert.Contains(t, chat.editTexts[msgID.MessageID], "success")
	_, ok := b.messages.Get("sess-1", "ws1")
	assert.False(t, ok)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOnProgressFiles_EditsAndUnlinksTerminalProgress(t *testing.T) {
	chat := newFakeChat()
	b, root := testBot(t, chat, nil)

	msgID, _ := chat.Send(context.Background(), "chat-1", "starting", nil)
	b.messages.Put("sess-1", "ws1", msgID)

	update := state.ProgressUpdate{
		WorkspaceID: "ws1", SessionID: "sess-1", WorkflowID: "prune-legacy",
		Status: state.RunStatusCompleted, Stage: state.StageCompleted, ProgressPercent: 100,
	}
	path := root.ProgressFile("sess-1", "ws1")
	require.NoError(t, state.WriteJSON(path, &update))

	b.onProgressFiles(context.Background(), []string{path})

	assert.Contains(t, chat.editTexts[msgID.MessageID], "✅")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
