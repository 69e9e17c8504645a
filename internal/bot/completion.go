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
	"fmt"

	"github.com/opsrelay/wrapup/internal/atomicfile"
	"github.com/opsrelay/wrapup/internal/state"
)

// processCompletion implements spec.md §4.2.6: edit the tracked message to
// the final result, then unlink both the completion file and the message
// tracking entry.
func (b *Bot) processCompletion(ctx context.Context, path string) {
	var record state.CompletionRecord
	if err := state.ReadJSON(path, &record); err != nil {
		b.logger.Warn("completion failed schema validation", "path", path, "error", err)
		_ = atomicfile.Unlink(path)
		return
	}

	text := renderCompletionMessage(record)

	id, ok := b.messages.Get(record.SessionID, record.WorkspaceID)
	if !ok {
		b.logger.Warn("no tracked message for completion, sending new message", "session_id", record.SessionID)
		if _, err := b.chat.Send(ctx, b.chatID, text, nil); err != nil {
			b.logger.Error("failed to send completion message", "error", err)
		}
	} else if err := b.chat.Edit(ctx, id, text, nil); err != nil {
		b.logger.Warn("failed to edit completion message, sending new one", "error", err)
		if _, sendErr := b.chat.Send(ctx, b.chatID, text, nil); sendErr != nil {
			b.logger.Error("failed to send fallback completion message", "error", sendErr)
		}
	}

	b.messages.Delete(record.SessionID, record.WorkspaceID)
	b.appendEvent(ctx, record.CorrelationID, record.WorkspaceID, record.SessionID, "bot", "execution.created", map[string]interface{}{
		"workflow_id": record.WorkflowID,
		"status":      string(record.Status),
	})
	_ = atomicfile.Unlink(path)
}

func renderCompletionMessage(r state.CompletionRecord) string {
	var icon string
	switch r.Status {
	case state.StatusSuccess:
		icon = "✅"
	case state.StatusTimeout:
		icon = "⏱"
	default:
		icon = "❌"
	}
	label := fmt.Sprintf("%s %s — %s in %.1fs", icon, r.WorkflowName, string(r.Status), r.DurationSeconds)
	if r.Summary != "" {
		label += "\n" + r.Summary
	}
	return label
}
