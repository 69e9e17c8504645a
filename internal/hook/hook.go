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

// Package hook implements the Session Summary Emitter: a short-lived
// subprocess invoked once per session termination that captures a complete
// context snapshot and hands it off to the Bot (spec.md §4.1). Grounded on
// the teacher's internal/action/shell subprocess pattern for the validator
// and git invocations, and internal/lifecycle for the bot-liveness check
// before spawning.
package hook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opsrelay/wrapup/internal/eventstore"
	"github.com/opsrelay/wrapup/internal/gitstatus"
	wraplog "github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/pidfile"
	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/state"
	"github.com/opsrelay/wrapup/internal/validator"
	"github.com/opsrelay/wrapup/pkg/ids"
)

// Input carries everything the invoking host passes to the Hook;
// cmd/wrapup-hook fills it from command-line flags (spec.md §4.1
// "Trigger").
type Input struct {
	SessionID     string
	WorkspacePath string
	UserPrompt    string
	LastResponse  string
}

// Config tunes the Hook's own behavior, independent of Input.
type Config struct {
	StateDir   string
	Validator  validator.Config
	BotCommand string
	BotArgs    []string
	SpawnBotFn func(command string, args []string) error
}

// Run executes the 8-step algorithm from spec.md §4.1, fail-open on every
// step except writing the summary file. It returns the written summary and
// a non-nil error only when the summary itself could not be written.
func Run(ctx context.Context, cfg Config, in Input, logger *slog.Logger) (*state.SessionSummary, error) {
	logger = wraplog.WithComponent(logger, "hook")
	root := state.NewRoot(cfg.StateDir)

	correlationID := ids.NewCorrelationID()
	workspaceID := ids.WorkspaceHash(in.WorkspacePath)
	log := logger.With(
		slog.String(wraplog.CorrelationIDKey, correlationID),
		slog.String(wraplog.SessionIDKey, in.SessionID),
		slog.String(wraplog.WorkspaceIDKey, workspaceID),
	)
	log.Info("hook.started")

	store, err := eventstore.Open(ctx, root.EventsDB())
	if err != nil {
		log.Warn("failed to open event store, continuing without tracing", "error", err)
		store = nil
	} else {
		defer store.Close()
	}
	appendEvent := func(eventType string, metadata map[string]interface{}) {
		if store == nil {
			return
		}
		if err := store.Append(ctx, eventstore.Event{
			CorrelationID: correlationID,
			WorkspaceID:   workspaceID,
			SessionID:     in.SessionID,
			Component:     "hook",
			EventType:     eventType,
			Metadata:      metadata,
		}); err != nil {
			log.Warn("failed to append event", "event_type", eventType, "error", err)
		}
	}

	duration := computeDuration(root, in.SessionID, log)

	lycheeStatus, err := validator.Run(ctx, cfg.Validator, in.WorkspacePath)
	if err != nil {
		log.Warn("validator run failed, recording as crash", "error", err)
		lycheeStatus = state.LycheeStatus{Ran: true, ErrorCount: 1, Details: err.Error()}
	}

	gitStatus, err := gitstatus.Collect(ctx, in.WorkspacePath)
	if err != nil {
		log.Warn("git status collection failed", "error", err)
		gitStatus = state.GitStatus{Branch: "unknown"}
	}

	summary := state.SessionSummary{
		CorrelationID:   correlationID,
		SessionID:       in.SessionID,
		WorkspacePath:   in.WorkspacePath,
		WorkspaceID:     workspaceID,
		Timestamp:       time.Now().UTC(),
		DurationSeconds: duration,
		GitStatus:       gitStatus,
		LycheeStatus:    lycheeStatus,
		UserPrompt:      in.UserPrompt,
		LastResponse:    in.LastResponse,
	}

	workflows, err := registry.LoadWorkflows(root.WorkflowsFile())
	if err != nil {
		log.Warn("failed to load workflow registry, no available workflows", "error", err)
	} else {
		eligible := registry.FilterEligible(workflows, summary)
		summary.AvailableWorkflows = make([]string, len(eligible))
		for i, wf := range eligible {
			summary.AvailableWorkflows[i] = wf.ID
		}
	}

	summaryPath := root.SummaryFile(in.SessionID, workspaceID)
	if err := state.WriteJSON(summaryPath, &summary); err != nil {
		log.Error("failed to write summary, aborting", "error", err)
		return nil, fmt.Errorf("writing summary %s: %w", summaryPath, err)
	}

	appendEvent("summary.created", map[string]interface{}{
		"error_count":  lycheeStatus.ErrorCount,
		"summary_file": summaryPath,
	})
	log.Info("hook.completed", "summary_file", summaryPath)

	if err := ensureBotRunning(root, cfg, log); err != nil {
		log.Warn("failed to ensure bot is running", "error", err)
	}

	return &summary, nil
}

// computeDuration reads and unlinks the session-start marker written at
// session start (spec.md §4.1 step 2), returning 0 on any absence or
// parse failure rather than failing the hook.
func computeDuration(root state.Root, sessionID string, log *slog.Logger) float64 {
	path := root.SessionTimestampFile(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("session-start marker missing, duration set to 0", "error", err)
		return 0
	}
	defer os.Remove(path)

	started, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		log.Warn("session-start marker unparsable, duration set to 0", "error", err)
		return 0
	}
	return time.Since(started).Seconds()
}

// ensureBotRunning checks the Bot's pidfile and spawns a detached Bot only
// when it is absent, stale, or fingerprint-mismatched (spec.md §4.1 step 8:
// "never spawn unconditionally").
func ensureBotRunning(root state.Root, cfg Config, log *slog.Logger) error {
	pid, fingerprint, err := pidfile.ReadFingerprint(root.BotPIDFile())
	if err == nil && pidfile.IsRunningAsFingerprint(pid, fingerprint) {
		log.Debug("bot already running", "pid", pid)
		return nil
	}

	log.Info("bot not running, spawning detached instance")
	if cfg.SpawnBotFn != nil {
		return cfg.SpawnBotFn(cfg.BotCommand, cfg.BotArgs)
	}
	return spawnDetached(cfg.BotCommand, cfg.BotArgs)
}
