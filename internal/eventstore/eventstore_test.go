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

package eventstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(context.Background(), filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppend_RejectsMissingCorrelationID(t *testing.T) {
	store := openTestStore(t)
	err := store.Append(context.Background(), Event{Component: "hook", EventType: "summary_written"})
	assert.Error(t, err)
}

func TestAppend_ByCorrelationID_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cid := "01HQZX8K3V2R5T9NABCDEFGHJK"
	require.NoError(t, store.Append(ctx, Event{
		CorrelationID: cid,
		WorkspaceID:   "ws1",
		SessionID:     "sess1",
		Component:     "hook",
		EventType:     "summary_written",
		Metadata:      map[string]interface{}{"duration_seconds": 12.5},
	}))
	require.NoError(t, store.Append(ctx, Event{
		CorrelationID: cid,
		WorkspaceID:   "ws1",
		SessionID:     "sess1",
		Component:     "bot",
		EventType:     "selection_recorded",
	}))

	events, err := store.ByCorrelationID(ctx, cid)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "hook", events[0].Component)
	assert.Equal(t, "bot", events[1].Component)
	assert.Equal(t, 12.5, events[0].Metadata["duration_seconds"])
}

func TestByCorrelationID_UnknownIDReturnsEmpty(t *testing.T) {
	store := openTestStore(t)
	events, err := store.ByCorrelationID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPruneOlderThan_RemovesOldEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := Event{CorrelationID: "old", Component: "hook", EventType: "x", Timestamp: time.Now().Add(-48 * time.Hour)}
	recent := Event{CorrelationID: "recent", Component: "hook", EventType: "x", Timestamp: time.Now()}
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, recent))

	n, err := store.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := store.ByCorrelationID(ctx, "recent")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
