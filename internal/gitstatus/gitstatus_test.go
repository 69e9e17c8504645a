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

package gitstatus

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func TestCollect_NonRepoYieldsUnknownBranch(t *testing.T) {
	dir := t.TempDir()

	got, err := Collect(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "unknown", got.Branch)
	assert.Zero(t, got.ModifiedFiles)
	assert.Zero(t, got.UntrackedFiles)
}

func TestCollect_RepoWithUntrackedFile(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))

	got, err := Collect(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "main", got.Branch)
	assert.Equal(t, 1, got.UntrackedFiles)
	assert.Zero(t, got.ModifiedFiles)
	assert.Zero(t, got.StagedFiles)
}

func TestCollect_RepoWithStagedFile(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	runGit(t, dir, "add", "a.txt")

	got, err := Collect(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StagedFiles)
}

func TestCountPorcelain_ClassifiesEachLine(t *testing.T) {
	modified, untracked, staged := countPorcelain(" M modified.txt\n?? new.txt\nA  staged.txt\n")
	assert.Equal(t, 1, modified)
	assert.Equal(t, 1, untracked)
	assert.Equal(t, 1, staged)
}
