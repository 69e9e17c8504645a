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

// Package gitstatus collects the git-state fields of a session summary by
// shelling out to the git binary, adapted from the teacher's
// internal/action/shell subprocess-capture pattern (context timeout,
// stdout/stderr buffers, exit-code classification).
package gitstatus

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/opsrelay/wrapup/internal/state"
)

// DefaultTimeout bounds every git invocation so a hung or huge repository
// can never stall the hook's exit.
const DefaultTimeout = 5 * time.Second

// Collect runs the git commands needed to populate a GitStatus for
// workspaceDir. A workspaceDir that is not inside a git repository yields
// GitStatus{Branch: "unknown"} with zero counts rather than an error
// (spec.md §3 invariant: git_status is present even when not a repo).
func Collect(ctx context.Context, workspaceDir string) (state.GitStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	if !isGitRepo(ctx, workspaceDir) {
		return state.GitStatus{Branch: "unknown"}, nil
	}

	branch, err := run(ctx, workspaceDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		// A repository with no commits yet has no HEAD revision; the branch
		// name is still available from the symbolic ref.
		branch, err = run(ctx, workspaceDir, "symbolic-ref", "--short", "HEAD")
		if err != nil {
			branch = ""
		}
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		branch = "unknown"
	}

	status := state.GitStatus{Branch: branch}

	porcelain, err := run(ctx, workspaceDir, "status", "--porcelain")
	if err == nil {
		modified, untracked, staged := countPorcelain(porcelain)
		status.ModifiedFiles = modified
		status.UntrackedFiles = untracked
		status.StagedFiles = staged
	}

	ahead, behind, err := countAheadBehind(ctx, workspaceDir, branch)
	if err == nil {
		status.AheadCommits = ahead
		status.BehindCommits = behind
	}

	return status, nil
}

func isGitRepo(ctx context.Context, dir string) bool {
	_, err := run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// countPorcelain classifies each `git status --porcelain` line. The first
// column is the index (staged) state, the second is the worktree state;
// "??" marks an untracked file.
func countPorcelain(output string) (modified, untracked, staged int) {
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 {
			continue
		}
		indexState, worktreeState := line[0], line[1]
		switch {
		case indexState == '?' && worktreeState == '?':
			untracked++
		default:
			if indexState != ' ' && indexState != '?' {
				staged++
			}
			if worktreeState != ' ' && worktreeState != '?' {
				modified++
			}
		}
	}
	return modified, untracked, staged
}

// countAheadBehind returns how many commits the current branch is ahead of
// and behind its upstream. A branch with no upstream configured yields
// (0, 0, nil) rather than an error.
func countAheadBehind(ctx context.Context, dir, branch string) (ahead, behind int, err error) {
	out, err := run(ctx, dir, "rev-list", "--left-right", "--count", branch+"...@{upstream}")
	if err != nil {
		return 0, 0, nil
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, errors.New("unexpected rev-list output")
	}
	ahead, err1 := strconv.Atoi(fields[0])
	behind, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, errors.New("unparsable rev-list counts")
	}
	return ahead, behind, nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}
	return stdout.String(), nil
}
