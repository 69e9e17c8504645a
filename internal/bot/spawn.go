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
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// spawnOrchestrator starts the Orchestrator as a detached child process
// with the selection file path on argv (spec.md §4.2.3 step 4), adapted
// from the teacher's internal/lifecycle Spawner.SpawnDetached.
func (b *Bot) spawnOrchestrator(selectionPath string) error {
	if b.orchestratorCommand == "" {
		return fmt.Errorf("orchestrator command is not configured")
	}

	args := append(append([]string{}, b.orchestratorArgs...), selectionPath)
	cmd := exec.Command(b.orchestratorCommand, args...)
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Setsid:  true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting orchestrator: %w", err)
	}
	return cmd.Process.Release()
}
