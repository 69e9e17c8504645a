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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/state"
)

// handleCallback implements spec.md §4.2.3: resolve the tapped button's
// callback key to its persisted entry, edit the message to a "starting"
// state, write a WorkflowSelection, and spawn the Orchestrator.
func (b *Bot) handleCallback(ctx context.Context, update callbackUpdate) {
	callbackPath := b.root.CallbackFile(update.CallbackData)

	var entry state.CallbackEntry
	err := state.ReadJSON(callbackPath, &entry)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("callback entry unreadable, treating as expired", "path", callbackPath, "error", err)
		}
		if ackErr := b.chat.AckUpdate(ctx, update.ID, "This workflow has expired — rerun the session to see it again."); ackErr != nil {
			b.logger.Warn("failed to send expired-callback toast", "error", ackErr)
		}
		return
	}

	wf, known := registry.ByID(b.workflows)[entry.WorkflowID]
	workflowName := entry.WorkflowID
	if known {
		workflowName = wf.Name
	}

	if id, ok := b.messages.Get(entry.SessionID, entry.WorkspaceID); ok {
		if err := b.chat.Edit(ctx, id, fmt.Sprintf("▶️ Starting %s…", workflowName), nil); err != nil {
			b.logger.Warn("failed to edit message to starting state", "error", err)
		}
	}

	selection := state.WorkflowSelection{
		SelectionType:     "workflow",
		CorrelationID:     entry.SummaryData.CorrelationID,
		SessionID:         entry.SessionID,
		Timestamp:         time.Now().UTC(),
		WorkflowIDs:       []string{entry.WorkflowID},
		OrchestrationMode: "sequential",
		WorkspacePath:     entry.SummaryData.WorkspacePath,
		WorkspaceID:       entry.WorkspaceID,
		SummaryData:       entry.SummaryData,
	}

	selectionPath := b.root.SelectionFile(entry.SessionID, entry.WorkspaceID)
	if err := state.WriteJSON(selectionPath, &selection); err != nil {
		b.logger.Error("failed to write selection", "error", err)
		return
	}

	if err := b.spawnOrchestrator(selectionPath); err != nil {
		b.logger.Error("failed to spawn orchestrator", "error", err)
		return
	}

	b.appendEvent(ctx, selection.CorrelationID, entry.WorkspaceID, entry.SessionID, "bot", "selection.created", map[string]interface{}{
		"workflow_id": entry.WorkflowID,
	})

	// The callback entry is left in place: spec.md §9 "Callback storage
	// retention" makes age-based GC (registry.GCCallbacks) the only
	// removal path, since a user may legitimately re-tap the same button.
}

// callbackUpdate is the subset of a chatclient.Update this handler needs.
type callbackUpdate struct {
	ID           string
	CallbackData string
}
