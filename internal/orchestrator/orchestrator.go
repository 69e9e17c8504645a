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

// Package orchestrator implements the Workflow Orchestrator: spawned once
// per user selection, it renders each selected workflow's prompt template,
// runs the headless CLI subprocess, streams progress, and publishes
// execution/completion records before exiting (spec.md §4.3). Subprocess
// spawn/capture/classify is grounded on the teacher's internal/action/shell
// ShellConnector.run, already adapted once for internal/validator.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/opsrelay/wrapup/internal/atomicfile"
	"github.com/opsrelay/wrapup/internal/eventstore"
	wraplog "github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/state"
	"github.com/opsrelay/wrapup/pkg/ids"
)

// maxCapturedOutputChars is the conservative per-stream cap on captured
// stdout/stderr (spec.md §9 open question: "choose a conservative cap
// (e.g. 10 KiB each) and document it").
const maxCapturedOutputChars = 10 * 1024

// Config tunes orchestrator execution.
type Config struct {
	StateDir         string
	DefaultTimeout   time.Duration
	CLICommand       string
	CLIArgs          []string
	ProgressInterval time.Duration
}

// Run executes spec.md §4.3's algorithm against the selection at
// selectionPath. It returns an error only when the selection cannot be
// read or the workflow registry cannot be loaded; failures writing
// progress, execution or completion files are logged and do not change
// the return value. Individual workflow
// failures are captured in their own WorkflowExecution/CompletionRecord
// and never abort sibling workflows.
func Run(ctx context.Context, cfg Config, selectionPath string, logger *slog.Logger) error {
	logger = wraplog.WithComponent(logger, "orchestrator")
	root := state.NewRoot(cfg.StateDir)

	var selection state.WorkflowSelection
	if err := state.ReadJSON(selectionPath, &selection); err != nil {
		logger.Error("failed to read selection", "path", selectionPath, "error", err)
		return fmt.Errorf("reading selection %s: %w", selectionPath, err)
	}

	workflows, err := registry.LoadWorkflows(root.WorkflowsFile())
	if err != nil {
		logger.Error("failed to load workflow registry", "error", err)
		return fmt.Errorf("loading workflow registry: %w", err)
	}
	byID := registry.ByID(workflows)

	store, err := eventstore.Open(ctx, root.EventsDB())
	if err != nil {
		logger.Warn("failed to open event store, continuing without tracing", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	log := logger.With(
		slog.String(wraplog.CorrelationIDKey, selection.CorrelationID),
		slog.String(wraplog.SessionIDKey, selection.SessionID),
		slog.String(wraplog.WorkspaceIDKey, selection.WorkspaceID),
	)

	for _, workflowID := range selection.WorkflowIDs {
		wf, known := byID[workflowID]
		if !known {
			log.Error("workflow id not found in registry, skipping", "workflow_id", workflowID)
			continue
		}
		runWorkflow(ctx, cfg, root, store, selection, wf, log)
	}

	return nil
}

func runWorkflow(ctx context.Context, cfg Config, root state.Root, store *eventstore.Store, selection state.WorkflowSelection, wf registry.WorkflowDefinition, log *slog.Logger) {
	wfLog := log.With(slog.String(wraplog.WorkflowIDKey, wf.ID))
	appendEvent := func(eventType string, metadata map[string]interface{}) {
		if store == nil {
			return
		}
		if err := store.Append(ctx, eventstore.Event{
			CorrelationID: selection.CorrelationID,
			WorkspaceID:   selection.WorkspaceID,
			SessionID:     selection.SessionID,
			Component:     "orchestrator",
			EventType:     eventType,
			Metadata:      metadata,
		}); err != nil {
			wfLog.Warn("failed to append event", "event_type", eventType, "error", err)
		}
	}

	executionID := ids.NewCorrelationID()
	startedAt := time.Now().UTC()

	prompt, err := renderPrompt(wf.PromptTemplate, selection)
	if err != nil {
		wfLog.Error("template render failed", "error", err)
		writeExecutionAndCompletion(root, selection, wf, executionResult{
			ExecutionID: executionID, Status: state.StatusError, ExitCode: -1,
			StartedAt: startedAt, CompletedAt: time.Now().UTC(),
			Summary: fmt.Sprintf("template render failed: %v", err),
		}, wfLog, appendEvent)
		return
	}
	appendEvent("workflow.template_rendered", nil)

	progressPath := root.ProgressFile(selection.SessionID, selection.WorkspaceID)
	emitProgress := func(stage state.ProgressStage, status state.ProgressRunStatus, percent int, message string) {
		update := state.ProgressUpdate{
			WorkspaceID: selection.WorkspaceID, SessionID: selection.SessionID, WorkflowID: wf.ID,
			Status: status, Stage: stage, ProgressPercent: percent, Message: message,
			Timestamp: time.Now().UTC(),
		}
		if err := state.WriteJSON(progressPath, &update); err != nil {
			wfLog.Warn("failed to write progress", "error", err)
		}
	}

	emitProgress(state.StageStarting, state.RunStatusRunning, 0, "")

	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	wfLog.Info("claude_cli.started")
	result := runSubprocess(ctx, cfg, selection.WorkspacePath, prompt, timeout, progressInterval(cfg), emitProgress)
	result.ExecutionID = executionID
	result.StartedAt = startedAt
	wfLog.Info("claude_cli.completed", "status", string(result.Status), "exit_code", result.ExitCode)

	emitProgress(state.StageCompleted, completedRunStatus(result.Status), 100, result.Summary)
	_ = atomicfile.Unlink(progressPath)

	writeExecutionAndCompletion(root, selection, wf, result, wfLog, appendEvent)
}

func progressInterval(cfg Config) time.Duration {
	if cfg.ProgressInterval > 0 {
		return cfg.ProgressInterval
	}
	return 10 * time.Second
}

func completedRunStatus(status state.ExecutionStatus) state.ProgressRunStatus {
	if status == state.StatusSuccess {
		return state.RunStatusCompleted
	}
	return state.RunStatusError
}

type executionResult struct {
	ExecutionID string
	Status      state.ExecutionStatus
	ExitCode    int
	StartedAt   time.Time
	CompletedAt time.Time
	Stdout      string
	Stderr      string
	Summary     string
}

// runSubprocess spawns the headless CLI with the rendered prompt, applies
// timeout, emits intermediate progress at fixed wall-clock intervals, and
// classifies the outcome (spec.md §4.3 step 2c-d). Grounded on the
// teacher's shell.ShellConnector.run capture/classify pattern, reused a
// third time after internal/gitstatus and internal/validator.
func runSubprocess(ctx context.Context, cfg Config, workspacePath, prompt string, timeout, interval time.Duration, emitProgress func(state.ProgressStage, state.ProgressRunStatus, int, string)) executionResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, cfg.CLIArgs...), prompt)
	cmd := exec.CommandContext(ctx, cfg.CLICommand, args...)
	if workspacePath != "" {
		cmd.Dir = workspacePath
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()

	done := make(chan error, 1)
	go func() { done <- cmd.Run() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stage := state.StageExecuting
	for {
		select {
		case err := <-done:
			return classify(err, ctx, start, stdout.String(), stderr.String())
		case <-ticker.C:
			emitProgress(stage, state.RunStatusRunning, 50, "still running")
			stage = state.StageWaiting
		}
	}
}

func classify(err error, ctx context.Context, start time.Time, stdout, stderr string) executionResult {
	duration := time.Since(start)
	completedAt := time.Now().UTC()
	stdout = truncateOutput(stdout)
	stderr = truncateOutput(stderr)

	if err == nil {
		return executionResult{
			Status: state.StatusSuccess, ExitCode: 0,
			CompletedAt: completedAt, Stdout: stdout, Stderr: stderr,
			Summary: fmt.Sprintf("completed in %.1fs", duration.Seconds()),
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return executionResult{
			Status: state.StatusTimeout, ExitCode: -1,
			CompletedAt: completedAt, Stdout: stdout, Stderr: stderr,
			Summary: fmt.Sprintf("timed out after %.1fs", duration.Seconds()),
		}
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return executionResult{
		Status: state.StatusError, ExitCode: exitCode,
		CompletedAt: completedAt, Stdout: stdout, Stderr: stderr,
		Summary: fmt.Sprintf("failed: %s", strings.TrimSpace(stderr)),
	}
}

func truncateOutput(s string) string {
	if len(s) <= maxCapturedOutputChars {
		return s
	}
	return s[:maxCapturedOutputChars] + "…(truncated)"
}

func writeExecutionAndCompletion(root state.Root, selection state.WorkflowSelection, wf registry.WorkflowDefinition, result executionResult, log *slog.Logger, appendEvent func(string, map[string]interface{})) {
	execution := state.WorkflowExecution{
		ExecutionID:     result.ExecutionID,
		CorrelationID:   selection.CorrelationID,
		SessionID:       selection.SessionID,
		WorkflowID:      wf.ID,
		WorkflowName:    wf.Name,
		Status:          result.Status,
		ExitCode:        result.ExitCode,
		DurationSeconds: result.CompletedAt.Sub(result.StartedAt).Seconds(),
		StartedAt:       result.StartedAt,
		CompletedAt:     result.CompletedAt,
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		Summary:         result.Summary,
		Metadata: state.ExecutionMetadata{
			EstimatedDuration: wf.EstimatedDuration,
			RiskLevel:         wf.RiskLevel,
			Category:          wf.Category,
		},
	}
	execPath := root.ExecutionFile(selection.SessionID, selection.WorkspaceID, wf.ID)
	if err := state.WriteJSON(execPath, &execution); err != nil {
		log.Error("failed to write execution record", "error", err)
	}

	completion := state.CompletionRecord{
		CorrelationID:   selection.CorrelationID,
		SessionID:       selection.SessionID,
		WorkspaceID:     selection.WorkspaceID,
		WorkflowID:      wf.ID,
		WorkflowName:    wf.Name,
		Status:          result.Status,
		DurationSeconds: execution.DurationSeconds,
		Summary:         result.Summary,
		Timestamp:       result.CompletedAt,
	}
	completionPath := root.CompletionFile(selection.SessionID, selection.WorkspaceID)
	if err := state.WriteJSON(completionPath, &completion); err != nil {
		log.Error("failed to write completion record", "error", err)
	}

	log.Info("workflow.completed", "status", string(result.Status))
	appendEvent("execution.created", map[string]interface{}{"status": string(result.Status)})
}
