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

	"golang.org/x/time/rate"

	"github.com/opsrelay/wrapup/internal/atomicfile"
	"github.com/opsrelay/wrapup/internal/state"
)

// progressEditRateLimit bounds edits per (session, workspace) to the chat
// transport's tighter edit ceiling (spec.md §4.2.5: "the chat transport
// limits message edits far more tightly than sends (~6/s)"). Burst of 1
// means a dense run of updates for the same message coalesces onto the
// most recent one instead of queuing — the poller's ~2s cadence sets the
// outer bound and this limiter sets the inner one, the same
// "Allow()-and-drop-if-throttled" idiom the teacher's file watcher uses
// for its own per-watcher trigger rate limit.
const progressEditRateLimit = rate.Limit(6)

// progressTracker remembers, per (session, workspace), a token-bucket
// limiter gating edits of that session's message, so a burst of
// overwrite-in-place updates between two poll ticks only produces one
// edit carrying the most recent content (spec.md §4.2.5, §8 scenario 4).
type progressTracker struct {
	limiters map[sessionKey]*rate.Limiter
}

func newProgressTracker() *progressTracker {
	return &progressTracker{limiters: make(map[sessionKey]*rate.Limiter)}
}

func (t *progressTracker) limiterFor(key sessionKey) *rate.Limiter {
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(progressEditRateLimit, 1)
		t.limiters[key] = l
	}
	return l
}

// onProgressFiles is called with the current snapshot of progress/ files
// on every poll tick.
func (b *Bot) onProgressFiles(ctx context.Context, paths []string) {
	for _, path := range paths {
		var update state.ProgressUpdate
		if err := state.ReadJSON(path, &update); err != nil {
			b.logger.Warn("progress file failed schema validation, skipping", "path", path, "error", err)
			continue
		}

		key := sessionKey{SessionID: update.SessionID, WorkspaceID: update.WorkspaceID}
		if !b.progress.limiterFor(key).Allow() {
			continue
		}

		id, ok := b.messages.Get(update.SessionID, update.WorkspaceID)
		if !ok {
			b.logger.Warn("no tracked message for progress update, skipping", "session_id", update.SessionID, "workspace_id", update.WorkspaceID)
			if update.IsTerminal() {
				_ = atomicfile.Unlink(path)
			}
			continue
		}

		text := renderProgressMessage(update)
		if err := b.chat.Edit(ctx, id, text, nil); err != nil {
			b.logger.Warn("failed to edit progress message", "error", err)
			continue
		}

		if update.IsTerminal() {
			_ = atomicfile.Unlink(path)
		}
	}
}

func renderProgressMessage(u state.ProgressUpdate) string {
	icon := "⏳"
	switch u.Status {
	case state.RunStatusCompleted:
		icon = "✅"
	case state.RunStatusError:
		icon = "❌"
	}
	if u.Message != "" {
		return fmt.Sprintf("%s %s (%s) — %s", icon, u.Stage, u.Status, u.Message)
	}
	return fmt.Sprintf("%s %s (%s) — %d%%", icon, u.Stage, u.Status, u.ProgressPercent)
}
