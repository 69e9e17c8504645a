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

import "time"

// GitStatus captures the git-state fields of a SessionSummary. A non-repo
// workspace yields branch="unknown" and zero counts rather than omitting
// the field (spec.md §3 invariant: "git_status present even when not a
// repo").
type GitStatus struct {
	Branch         string `json:"branch"`
	ModifiedFiles  int    `json:"modified_files"`
	UntrackedFiles int    `json:"untracked_files"`
	StagedFiles    int    `json:"staged_files"`
	AheadCommits   int    `json:"ahead_commits"`
	BehindCommits  int    `json:"behind_commits"`
}

// LycheeStatus captures the content validator's outcome. Ran is false when
// the validator did not run at all; a crashed or malformed validator is
// still Ran=true with ErrorCount > 0 and Details holding the crash detail
// (spec.md §4.1 step 3: "crashes are surfaced as errors, not swallowed").
type LycheeStatus struct {
	Ran         bool   `json:"ran"`
	ErrorCount  int    `json:"error_count"`
	Details     string `json:"details,omitempty"`
	ResultsFile string `json:"results_file,omitempty"`
}

// SessionSummary is the Hook's output artifact, read by the Bot.
type SessionSummary struct {
	CorrelationID      string       `json:"correlation_id"`
	SessionID          string       `json:"session_id"`
	WorkspacePath      string       `json:"workspace_path"`
	WorkspaceID        string       `json:"workspace_id"`
	Timestamp          time.Time    `json:"timestamp"`
	DurationSeconds    float64      `json:"duration_seconds"`
	GitStatus          GitStatus    `json:"git_status"`
	LycheeStatus       LycheeStatus `json:"lychee_status"`
	AvailableWorkflows []string     `json:"available_workflows"`
	UserPrompt         string       `json:"user_prompt"`
	LastResponse       string       `json:"last_response"`
}

// Validate checks the required-field invariants from spec.md §3. It does
// not validate nested-field semantics (e.g. that GitStatus counts are
// non-negative) — only presence of the fields the spec calls required.
func (s *SessionSummary) Validate() error {
	switch {
	case s.CorrelationID == "":
		return fieldError("correlation_id")
	case s.SessionID == "":
		return fieldError("session_id")
	case s.WorkspacePath == "":
		return fieldError("workspace_path")
	case s.Timestamp.IsZero():
		return fieldError("timestamp")
	}
	return nil
}

// WorkflowSelection is the Bot's output artifact, read by the Orchestrator.
// It carries summary_data inline (spec.md §3: "the summary file may have
// been consumed and unlinked by the bot before the orchestrator opens the
// selection, so the orchestrator must not depend on it existing").
type WorkflowSelection struct {
	SelectionType     string         `json:"selection_type"`
	CorrelationID     string         `json:"correlation_id"`
	SessionID         string         `json:"session_id"`
	Timestamp         time.Time      `json:"timestamp"`
	WorkflowIDs       []string       `json:"workflow_ids"`
	OrchestrationMode string         `json:"orchestration_mode"`
	WorkspacePath     string         `json:"workspace_path"`
	WorkspaceID       string         `json:"workspace_id"`
	SummaryData       SessionSummary `json:"summary_data"`
}

func (s *WorkflowSelection) Validate() error {
	switch {
	case s.CorrelationID == "":
		return fieldError("correlation_id")
	case s.SessionID == "":
		return fieldError("session_id")
	case len(s.WorkflowIDs) == 0:
		return fieldError("workflow_ids")
	}
	return nil
}

// ExecutionStatus is the closed vocabulary for WorkflowExecution.Status.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
	StatusTimeout ExecutionStatus = "timeout"
	StatusAborted ExecutionStatus = "aborted"
)

// ExecutionMetadata carries the registry fields that are still relevant
// after the workflow has run, so a reader doesn't need the registry loaded
// to interpret the execution record.
type ExecutionMetadata struct {
	EstimatedDuration string `json:"estimated_duration,omitempty"`
	RiskLevel         string `json:"risk_level,omitempty"`
	Category          string `json:"category,omitempty"`
}

// WorkflowExecution is the Orchestrator's detailed per-workflow result,
// written to executions/.
type WorkflowExecution struct {
	ExecutionID     string            `json:"execution_id"`
	CorrelationID   string            `json:"correlation_id"`
	SessionID       string            `json:"session_id"`
	WorkflowID      string            `json:"workflow_id"`
	WorkflowName    string            `json:"workflow_name"`
	Status          ExecutionStatus   `json:"status"`
	ExitCode        int               `json:"exit_code"`
	DurationSeconds float64           `json:"duration_seconds"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	Summary         string            `json:"summary"`
	Metadata        ExecutionMetadata `json:"metadata"`
}

// ProgressStage is the closed vocabulary for ProgressUpdate.Stage.
type ProgressStage string

const (
	StageStarting  ProgressStage = "starting"
	StageRendering ProgressStage = "rendering"
	StageExecuting ProgressStage = "executing"
	StageWaiting   ProgressStage = "waiting"
	StageCompleted ProgressStage = "completed"
)

// ProgressRunStatus is the closed vocabulary for ProgressUpdate.Status.
type ProgressRunStatus string

const (
	RunStatusRunning   ProgressRunStatus = "running"
	RunStatusCompleted ProgressRunStatus = "completed"
	RunStatusError     ProgressRunStatus = "error"
)

// ProgressUpdate is overwritten in place at each stage of one workflow's
// execution, and deleted when Status is terminal (spec.md §3 "Progress
// Update").
type ProgressUpdate struct {
	WorkspaceID     string            `json:"workspace_id"`
	SessionID       string            `json:"session_id"`
	WorkflowID      string            `json:"workflow_id"`
	Status          ProgressRunStatus `json:"status"`
	Stage           ProgressStage     `json:"stage"`
	ProgressPercent int               `json:"progress_percent"`
	Message         string            `json:"message"`
	Timestamp       time.Time         `json:"timestamp"`
}

// IsTerminal reports whether this update's Status ends the progress stream
// for its (session, workspace) pair (spec.md §4.2.5).
func (p ProgressUpdate) IsTerminal() bool {
	return p.Status == RunStatusCompleted || p.Status == RunStatusError
}

// CompletionRecord is the compact artifact the Bot edits the chat message
// from on workflow completion (spec.md §4.2.6, §4.3 step 2f).
type CompletionRecord struct {
	CorrelationID   string          `json:"correlation_id"`
	SessionID       string          `json:"session_id"`
	WorkspaceID     string          `json:"workspace_id"`
	WorkflowID      string          `json:"workflow_id"`
	WorkflowName    string          `json:"workflow_name"`
	Status          ExecutionStatus `json:"status"`
	DurationSeconds float64         `json:"duration_seconds"`
	Summary         string          `json:"summary"`
	Timestamp       time.Time       `json:"timestamp"`
}

// CallbackEntry is what the Bot stores under a short opaque key so an
// inline-button callback payload never has to carry more than that key
// (spec.md §3 "Callback Mapping").
type CallbackEntry struct {
	WorkflowID  string         `json:"workflow_id"`
	SessionID   string         `json:"session_id"`
	WorkspaceID string         `json:"workspace_id"`
	SummaryData SessionSummary `json:"summary_data"`
	CreatedAt   time.Time      `json:"created_at"`
}

func fieldError(name string) error {
	return &ValidationError{Field: name}
}

// ValidationError names the first required field found missing during
// Validate.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}
