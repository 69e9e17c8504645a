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

// Package bot implements the Bot Coordinator: a long-lived, single-
// threaded-cooperative event loop that is simultaneously a chat client, a
// filesystem watcher, a rate-limited message sender, a progress streamer,
// and a keyed-event correlator (spec.md §4.2). Grounded on the teacher's
// internal/controller/filewatcher for the watch side and internal/lifecycle
// for single-instance pidfile enforcement and graceful shutdown.
package bot

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/opsrelay/wrapup/internal/chatclient"
	"github.com/opsrelay/wrapup/internal/eventstore"
	wraplog "github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/pidfile"
	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/state"
	"github.com/opsrelay/wrapup/pkg/ids"
)

// Config tunes the Bot's scheduling and supervision behavior.
type Config struct {
	StateDir             string
	ChatID               string
	IdleTimeout          time.Duration
	CallbackTTL          time.Duration
	CallbackGCInterval   time.Duration
	ShutdownGracePeriod  time.Duration
	ProgressPollInterval time.Duration
	OrchestratorCommand  string
	OrchestratorArgs     []string
}

// chatTransport is the narrow surface Bot depends on, satisfied by
// *chatclient.Client.
type chatTransport interface {
	Send(ctx context.Context, chatID, text string, keyboard chatclient.Keyboard) (chatclient.MessageID, error)
	Edit(ctx context.Context, id chatclient.MessageID, text string, keyboard chatclient.Keyboard) error
	PollUpdates(ctx context.Context) ([]chatclient.Update, error)
	AckUpdate(ctx context.Context, id string, text string) error
}

// Bot is the Coordinator. All fields except those explicitly guarded
// (messageStore, progressTracker) are mutated only from the Run loop
// goroutine (spec.md §5 "all mutable shared state ... lives on the event
// loop and is only mutated from it").
type Bot struct {
	cfg    Config
	root   state.Root
	chat   chatTransport
	chatID string

	workflows  []registry.WorkflowDefinition
	workspaces registry.Workspaces

	messages *messageStore
	progress *progressTracker
	events   *eventstore.Store
	pidfile  *pidfile.File
	logger   *slog.Logger

	orchestratorCommand string
	orchestratorArgs    []string

	summariesDirAbs   string
	completionsDirAbs string

	lastActivity time.Time
}

// New builds a Bot ready to Run. Callers are responsible for opening chat
// (a *chatclient.Client) and passing it in, so tests can substitute a fake
// transport.
func New(cfg Config, chat chatTransport, logger *slog.Logger) *Bot {
	return &Bot{
		cfg:                  cfg,
		root:                 state.NewRoot(cfg.StateDir),
		chat:                 chat,
		chatID:               cfg.ChatID,
		messages:             newMessageStore(),
		progress:             newProgressTracker(),
		logger:               wraplog.WithComponent(logger, "bot"),
		orchestratorCommand:  cfg.OrchestratorCommand,
		orchestratorArgs:     cfg.OrchestratorArgs,
	}
}

// Run acquires single-instance ownership, loads the registries, starts the
// watcher and poller, and drives the event loop until ctx is cancelled or
// an idle timeout elapses. It returns nil on a clean shutdown.
func (b *Bot) Run(ctx context.Context) error {
	pf := pidfile.New(b.root.BotPIDFile())
	if err := pf.Acquire(); err != nil {
		return err
	}
	b.pidfile = pf
	defer b.pidfile.Release()

	workflows, err := registry.LoadWorkflows(b.root.WorkflowsFile())
	if err != nil {
		return err
	}
	b.workflows = workflows

	workspaces, err := registry.LoadWorkspaces(b.root.RegistryFile())
	if err != nil {
		return err
	}
	b.workspaces = workspaces

	store, err := eventstore.Open(ctx, b.root.EventsDB())
	if err != nil {
		return err
	}
	b.events = store
	defer b.events.Close()

	if recordStartAndCheckCrashLoop(b.root.BotPIDFile(), time.Now(), b.logger) {
		b.logger.Warn("bot.started", "crash_loop", true)
		b.appendEvent(ctx, ids.NewCorrelationID(), "", "", "bot", "bot.started", map[string]interface{}{"crash_loop": true})
		if _, err := b.chat.Send(ctx, b.chatID, "⚠️ The bot has restarted repeatedly in the last minute — it may be crash-looping.", nil); err != nil {
			b.logger.Warn("failed to send crash-loop notice", "error", err)
		}
	}

	b.summariesDirAbs, err = filepath.Abs(b.root.SummariesDir())
	if err != nil {
		return err
	}
	b.completionsDirAbs, err = filepath.Abs(b.root.CompletionsDir())
	if err != nil {
		return err
	}

	watcher, err := NewDirWatcher([]string{b.root.SummariesDir(), b.root.CompletionsDir()}, b.logger)
	if err != nil {
		return err
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	progressPollInterval := b.cfg.ProgressPollInterval
	if progressPollInterval <= 0 {
		progressPollInterval = 2 * time.Second
	}
	progressCh := make(chan []string, 4)
	poller := NewProgressPoller(b.root.ProgressDir(), progressPollInterval)
	go poller.Poll(ctx, func(paths []string) {
		select {
		case progressCh <- paths:
		case <-ctx.Done():
		}
	})

	updatesCh := make(chan []chatclient.Update, 4)
	go b.pollUpdatesLoop(ctx, updatesCh)

	callbackGCInterval := b.cfg.CallbackGCInterval
	if callbackGCInterval <= 0 {
		callbackGCInterval = 15 * time.Minute
	}
	gcTicker := time.NewTicker(callbackGCInterval)
	defer gcTicker.Stop()

	var idleCheck <-chan time.Time
	if b.cfg.IdleTimeout > 0 {
		idleTicker := time.NewTicker(b.cfg.IdleTimeout / 4)
		defer idleTicker.Stop()
		idleCheck = idleTicker.C
	}

	b.lastActivity = time.Now()
	b.logger.Info("bot.started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot.shutdown", "reason", "context cancelled")
			return nil

		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			b.dispatchFileEvent(ctx, ev)
			b.lastActivity = time.Now()

		case paths := <-progressCh:
			if len(paths) > 0 {
				b.onProgressFiles(ctx, paths)
				b.lastActivity = time.Now()
			}

		case updates := <-updatesCh:
			for _, u := range updates {
				b.dispatchUpdate(ctx, u)
			}
			if len(updates) > 0 {
				b.lastActivity = time.Now()
			}

		case <-gcTicker.C:
			if removed, err := registry.GCCallbacks(b.root.CallbacksDir(), b.callbackTTL()); err != nil {
				b.logger.Warn("callback GC failed", "error", err)
			} else if removed > 0 {
				b.logger.Debug("callback GC swept entries", "removed", removed)
			}

		case <-idleCheck:
			if time.Since(b.lastActivity) >= b.cfg.IdleTimeout {
				b.logger.Info("bot.shutdown", "reason", "idle timeout")
				return nil
			}
		}
	}
}

func (b *Bot) callbackTTL() time.Duration {
	if b.cfg.CallbackTTL > 0 {
		return b.cfg.CallbackTTL
	}
	return 2 * time.Hour
}

func (b *Bot) dispatchFileEvent(ctx context.Context, ev FileEvent) {
	switch ev.Dir {
	case b.summariesDirAbs:
		b.processSummary(ctx, ev.Path)
	case b.completionsDirAbs:
		b.processCompletion(ctx, ev.Path)
	default:
		b.logger.Warn("file event from unrecognized directory", "dir", ev.Dir)
	}
}

func (b *Bot) dispatchUpdate(ctx context.Context, u chatclient.Update) {
	if u.CallbackData != "" {
		b.handleCallback(ctx, callbackUpdate{ID: u.ID, CallbackData: u.CallbackData})
		return
	}
	b.logger.Debug("ignoring plain-text update", "chat_id", u.ChatID)
}

// pollUpdatesLoop runs the chat transport's blocking long-poll on its own
// goroutine and forwards batches back to the event loop, so PollUpdates's
// blocking wait never stalls file-watch or timer processing (spec.md §5
// "the chat transport's long-poll" is one of the loop's suspension points,
// modeled here as its own goroutine feeding a channel rather than an
// in-loop blocking call).
func (b *Bot) pollUpdatesLoop(ctx context.Context, out chan<- []chatclient.Update) {
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := b.chat.PollUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("poll updates failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(updates) == 0 {
			continue
		}
		select {
		case out <- updates:
		case <-ctx.Done():
			return
		}
	}
}
