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

// Package state defines the JSON schemas and file-naming conventions for
// every artifact exchanged between the hook, bot, and orchestrator (spec.md
// §3 Data Model, §6 External Interfaces), plus the atomic read/write helpers
// built on internal/atomicfile that every producer/consumer uses.
package state

import (
	"fmt"
	"path/filepath"
)

// Root wraps the configured state directory and resolves the fixed-layout
// subpaths described in spec.md §6.
type Root struct {
	Dir string
}

func NewRoot(dir string) Root { return Root{Dir: dir} }

func (r Root) WorkflowsFile() string  { return filepath.Join(r.Dir, "workflows.json") }
func (r Root) RegistryFile() string   { return filepath.Join(r.Dir, "registry.json") }
func (r Root) EventsDB() string       { return filepath.Join(r.Dir, "events.db") }
func (r Root) BotPIDFile() string     { return filepath.Join(r.Dir, "bot.pid") }
func (r Root) SummariesDir() string   { return filepath.Join(r.Dir, "summaries") }
func (r Root) SelectionsDir() string  { return filepath.Join(r.Dir, "selections") }
func (r Root) ExecutionsDir() string  { return filepath.Join(r.Dir, "executions") }
func (r Root) CompletionsDir() string { return filepath.Join(r.Dir, "completions") }
func (r Root) ProgressDir() string    { return filepath.Join(r.Dir, "progress") }
func (r Root) CallbacksDir() string   { return filepath.Join(r.Dir, "callbacks") }

func (r Root) SessionTimestampFile(sessionID string) string {
	return filepath.Join(r.Dir, "session_timestamps", sessionID+".timestamp")
}

func (r Root) SummaryFile(sessionID, workspaceID string) string {
	return filepath.Join(r.SummariesDir(), fmt.Sprintf("summary_%s_%s.json", sessionID, workspaceID))
}

func (r Root) SelectionFile(sessionID, workspaceID string) string {
	return filepath.Join(r.SelectionsDir(), fmt.Sprintf("selection_%s_%s.json", sessionID, workspaceID))
}

func (r Root) ExecutionFile(sessionID, workspaceID, workflowID string) string {
	return filepath.Join(r.ExecutionsDir(), fmt.Sprintf("execution_%s_%s_%s.json", sessionID, workspaceID, workflowID))
}

func (r Root) CompletionFile(sessionID, workspaceID string) string {
	return filepath.Join(r.CompletionsDir(), fmt.Sprintf("completion_%s_%s.json", sessionID, workspaceID))
}

func (r Root) ProgressFile(sessionID, workspaceID string) string {
	return filepath.Join(r.ProgressDir(), fmt.Sprintf("progress_%s_%s.json", sessionID, workspaceID))
}

func (r Root) CallbackFile(key string) string {
	return filepath.Join(r.CallbacksDir(), fmt.Sprintf("cb_%s.json", key))
}
