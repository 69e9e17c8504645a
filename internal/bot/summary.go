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
	"strings"
	"time"

	"github.com/opsrelay/wrapup/internal/atomicfile"
	"github.com/opsrelay/wrapup/internal/chatclient"
	"github.com/opsrelay/wrapup/internal/eventstore"
	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/state"
	"github.com/opsrelay/wrapup/pkg/ids"
	"github.com/opsrelay/wrapup/pkg/markup"
)

const maxPreviewChars = 500

// processSummary implements spec.md §4.2.2: validate, resolve workspace
// display, re-filter eligible workflows, build the inline-keyboard menu,
// persist one callback entry per button, send, and unlink.
func (b *Bot) processSummary(ctx context.Context, path string) {
	var summary state.SessionSummary
	if err := state.ReadJSON(path, &summary); err != nil {
		b.logger.Warn("summary failed schema validation", "path", path, "error", err)
		b.sendDiagnostic(ctx, fmt.Sprintf("⚠️ Received a malformed session summary (%s); discarding it.", path))
		_ = atomicfile.Unlink(path)
		return
	}

	b.appendEvent(ctx, summary.CorrelationID, summary.WorkspaceID, summary.SessionID, "bot", "summary.received", nil)

	icon, name, known := b.workspaces.Lookup(summary.WorkspaceID)
	label := summary.WorkspaceID
	if known {
		label = strings.TrimSpace(icon + " " + name)
	}

	eligible := registry.FilterEligible(b.workflows, summary)
	keyboard, callbackErr := b.buildKeyboard(eligible, summary)
	if callbackErr != nil {
		b.logger.Error("failed to allocate callbacks for summary", "path", path, "error", callbackErr)
		_ = atomicfile.Unlink(path)
		return
	}

	text := b.renderSummaryMessage(label, summary)

	chatID := b.chatID
	id, err := b.chat.Send(ctx, chatID, text, keyboard)
	if err != nil {
		b.logger.Error("failed to send summary message", "session_id", summary.SessionID, "error", err)
		_ = atomicfile.Unlink(path)
		return
	}
	b.messages.Put(summary.SessionID, summary.WorkspaceID, id)

	b.appendEvent(ctx, summary.CorrelationID, summary.WorkspaceID, summary.SessionID, "bot", "summary.processed", nil)
	_ = atomicfile.Unlink(path)
}

// buildKeyboard groups eligible workflows by category (in category-then-
// declaration order), lays buttons out two per row, and persists one
// callback entry per button keyed by a freshly allocated short key
// (spec.md §4.2.2 steps 3 and 5).
func (b *Bot) buildKeyboard(eligible []registry.WorkflowDefinition, summary state.SessionSummary) (chatclient.Keyboard, error) {
	ordered := groupByCategory(eligible)

	var buttons []chatclient.Button
	for _, wf := range ordered {
		key, err := ids.CallbackKey(summary.SessionID, summary.WorkspaceID, wf.ID)
		if err != nil {
			return nil, fmt.Errorf("allocating callback key for %s: %w", wf.ID, err)
		}
		entry := state.CallbackEntry{
			WorkflowID:  wf.ID,
			SessionID:   summary.SessionID,
			WorkspaceID: summary.WorkspaceID,
			SummaryData: summary,
			CreatedAt:   time.Now().UTC(),
		}
		if err := state.WriteJSON(b.root.CallbackFile(key), &entry); err != nil {
			return nil, fmt.Errorf("persisting callback %s: %w", key, err)
		}
		buttons = append(buttons, chatclient.Button{
			Label:        strings.TrimSpace(wf.Icon + " " + wf.Name),
			CallbackData: key,
		})
	}

	var rows chatclient.Keyboard
	for i := 0; i < len(buttons); i += 2 {
		end := i + 2
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return rows, nil
}

// groupByCategory stably groups defs by Category, preserving each
// category's first-appearance order and each entry's declaration order
// within its category.
func groupByCategory(defs []registry.WorkflowDefinition) []registry.WorkflowDefinition {
	var categories []string
	grouped := make(map[string][]registry.WorkflowDefinition)
	for _, def := range defs {
		if _, ok := grouped[def.Category]; !ok {
			categories = append(categories, def.Category)
		}
		grouped[def.Category] = append(grouped[def.Category], def)
	}
	var out []registry.WorkflowDefinition
	for _, cat := range categories {
		out = append(out, grouped[cat]...)
	}
	return out
}

func (b *Bot) renderSummaryMessage(label string, summary state.SessionSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", markup.EscapeHTMLText(label))
	fmt.Fprintf(&sb, "Session duration: %.1fs\n\n", summary.DurationSeconds)

	if summary.UserPrompt != "" {
		fmt.Fprintf(&sb, "_Last prompt:_ %s\n", markup.EscapeHTMLText(truncate(summary.UserPrompt, maxPreviewChars)))
	}
	if summary.LastResponse != "" {
		fmt.Fprintf(&sb, "_Last response:_ %s\n\n", markup.EscapeHTMLText(truncate(summary.LastResponse, maxPreviewChars)))
	}

	gs := summary.GitStatus
	porcelain := fmt.Sprintf("branch: %s\nmodified: %d  untracked: %d  staged: %d\nahead: %d  behind: %d",
		gs.Branch, gs.ModifiedFiles, gs.UntrackedFiles, gs.StagedFiles, gs.AheadCommits, gs.BehindCommits)
	sb.WriteString(markup.CodeBlock("", porcelain))
	sb.WriteString("\n")

	if summary.LycheeStatus.Ran {
		fmt.Fprintf(&sb, "\nValidator: %d issue(s) found", summary.LycheeStatus.ErrorCount)
	}

	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func (b *Bot) sendDiagnostic(ctx context.Context, text string) {
	if _, err := b.chat.Send(ctx, b.chatID, text, nil); err != nil {
		b.logger.Error("failed to send diagnostic message", "error", err)
	}
}

func (b *Bot) appendEvent(ctx context.Context, correlationID, workspaceID, sessionID, component, eventType string, metadata map[string]interface{}) {
	if b.events == nil {
		return
	}
	if err := b.events.Append(ctx, eventstore.Event{
		CorrelationID: correlationID,
		WorkspaceID:   workspaceID,
		SessionID:     sessionID,
		Component:     component,
		EventType:     eventType,
		Metadata:      metadata,
	}); err != nil {
		b.logger.Warn("failed to append event", "event_type", eventType, "error", err)
	}
}
