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

package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NoCommandConfiguredMeansDidNotRun(t *testing.T) {
	got, err := Run(context.Background(), Config{}, t.TempDir())
	require.NoError(t, err)
	assert.False(t, got.Ran)
}

func TestRun_SuccessfulExitZero(t *testing.T) {
	cfg := Config{Command: "true"}
	got, err := Run(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	assert.True(t, got.Ran)
	assert.Zero(t, got.ErrorCount)
}

func TestRun_NonZeroExitRecordsFindingsNotError(t *testing.T) {
	cfg := Config{Command: "sh", Args: []string{"-c", "echo issue1; echo issue2; exit 1"}, Timeout: 0}
	// sh -c ignores the appended target argument ($0), which is fine here.
	got, err := Run(context.Background(), cfg, "ignored")
	require.NoError(t, err)
	assert.True(t, got.Ran)
	assert.Greater(t, got.ErrorCount, 0)
}

func TestRun_MissingBinaryIsError(t *testing.T) {
	cfg := Config{Command: "definitely-not-a-real-binary-xyz"}
	got, err := Run(context.Background(), cfg, t.TempDir())
	require.Error(t, err)
	assert.True(t, got.Ran)
}

func TestRun_TimeoutIsError(t *testing.T) {
	cfg := Config{Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 20 * time.Millisecond}
	// The appended target becomes $0 inside the sh -c script and is ignored.
	got, err := Run(context.Background(), cfg, "ignored")
	require.Error(t, err)
	assert.True(t, got.Ran)
	assert.Greater(t, got.ErrorCount, 0)
}
