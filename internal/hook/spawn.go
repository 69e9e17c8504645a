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

package hook

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// spawnDetached starts the Bot as a fully detached background process: new
// process group and session so it survives the Hook's exit, stdio closed
// rather than inherited (spec.md §5 "Hook and Orchestrator are spawned
// detached from their parent and do not inherit the parent's stdio"),
// adapted from the teacher's internal/lifecycle Spawner.SpawnDetached.
func spawnDetached(binary string, args []string) error {
	if binary == "" {
		return fmt.Errorf("bot command is not configured")
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Setsid:  true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting bot process: %w", err)
	}
	return cmd.Process.Release()
}
