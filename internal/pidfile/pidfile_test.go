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

package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_WritesOwnPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.pid")

	f := New(path)
	require.NoError(t, f.Acquire())
	defer f.Release()

	pid, fingerprint, err := ReadFingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, ownFingerprint(), fingerprint)
}

func TestAcquire_SecondInstanceFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.pid")

	first := New(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := New(path)
	err := second.Acquire()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquire_ReplacesStalePIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.pid")

	// A PID that is vanishingly unlikely to be alive, simulating a
	// crash-left file.
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o600))

	f := New(path)
	require.NoError(t, f.Acquire())
	defer f.Release()

	pid, _, err := ReadFingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_ReplacesLiveFingerprintMismatchedPIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.pid")

	// The current test process is alive but its fingerprint ("go" test
	// binary) never matches "some-other-command", simulating PID reuse:
	// reapIfStale must still treat it as stale since the command differs.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\nsome-other-command\n"), 0o600))

	f := New(path)
	require.NoError(t, f.Acquire())
	defer f.Release()

	pid, fingerprint, err := ReadFingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, ownFingerprint(), fingerprint)
}

func TestRelease_RemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.pid")

	f := New(path)
	require.NoError(t, f.Acquire())
	require.NoError(t, f.Release())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestIsRunning_CurrentProcessIsAlive(t *testing.T) {
	assert.True(t, IsRunning(os.Getpid()))
}

func TestIsRunningAsFingerprint_MatchingFingerprintIsRunning(t *testing.T) {
	assert.True(t, IsRunningAsFingerprint(os.Getpid(), ownFingerprint()))
}

func TestIsRunningAsFingerprint_MismatchedFingerprintIsNotRunning(t *testing.T) {
	// The current process is alive but never matches this fabricated
	// fingerprint, simulating a recycled PID now held by an unrelated
	// command.
	assert.False(t, IsRunningAsFingerprint(os.Getpid(), "definitely-not-this-binary"))
}

func TestIsRunningAsFingerprint_EmptyFingerprintFallsBackToLiveness(t *testing.T) {
	// Old-format pidfiles (written before fingerprinting) carry no
	// fingerprint line; liveness alone must still decide.
	assert.True(t, IsRunningAsFingerprint(os.Getpid(), ""))
}

func TestRead_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "absent.pid"))
	assert.Error(t, err)
}
