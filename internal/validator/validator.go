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

// Package validator invokes the configured content validator (lychee by
// default) as a subprocess with a bounded timeout, grounded on the
// teacher's internal/action/shell subprocess-capture pattern. A crash or
// timeout is surfaced to the caller as an error rather than silently
// treated as "no errors found" (spec.md §4.1 step 3).
package validator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/opsrelay/wrapup/internal/state"
)

// Config controls how the validator subprocess is invoked.
type Config struct {
	// Command is the executable to run, e.g. "lychee".
	Command string
	// Args are appended after Command, before the target path.
	Args []string
	// Timeout bounds the subprocess. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a validator run when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Run executes the configured validator against target (typically the
// workspace directory) and returns the resulting LycheeStatus. With no
// Command configured it runs nothing and returns Ran=false; otherwise Ran
// is true on return because the attempt itself happened. A non-zero exit
// code is recorded via ErrorCount and Details rather than
// returned as an error, so a findings-only failure doesn't abort the
// session summary. A genuine execution failure (binary missing, timeout)
// is returned as an error with Ran still true, since the attempt was made.
func Run(ctx context.Context, cfg Config, target string) (state.LycheeStatus, error) {
	if cfg.Command == "" {
		return state.LycheeStatus{Ran: false}, nil
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, cfg.Args...), target)
	cmd := exec.CommandContext(ctx, cfg.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	status := state.LycheeStatus{Ran: true}

	if ctx.Err() == context.DeadlineExceeded {
		status.ErrorCount = 1
		status.Details = fmt.Sprintf("validator timed out after %s", timeout)
		return status, fmt.Errorf("validator %s: %w", cfg.Command, ctx.Err())
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// Most validators exit non-zero to report findings, not a
			// crash: record the findings and do not treat this as an
			// execution error.
			status.ErrorCount = countIssues(stdout.String())
			if status.ErrorCount == 0 {
				status.ErrorCount = 1
			}
			status.Details = strings.TrimSpace(stdout.String())
			_ = exitErr
			return status, nil
		}
		status.ErrorCount = 1
		status.Details = strings.TrimSpace(stderr.String())
		return status, fmt.Errorf("running validator %s: %w", cfg.Command, err)
	}

	status.Details = strings.TrimSpace(stdout.String())
	return status, nil
}

// countIssues gives a rough count of reported problems from validator
// stdout by counting non-empty lines, used only when the validator's exit
// code signals findings but gives no structured count.
func countIssues(output string) int {
	n := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
