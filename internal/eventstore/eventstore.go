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

// Package eventstore implements the append-only SQLite correlation-event
// log shared by the hook, bot, and orchestrator (spec.md §3 "Event Store",
// §6), grounded on the teacher's internal/tracing/storage SQLite backend:
// same WAL-mode connection string, same migrate-on-open pattern, same
// pure-Go modernc.org/sqlite driver so the binaries stay CGO-free.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the session_events table: one row per lifecycle event emitted
// by any component, keyed by correlation ID.
type Store struct {
	db *sql.DB
}

// Event is a single row of the append-only log.
type Event struct {
	ID            int64
	CorrelationID string
	WorkspaceID   string
	SessionID     string
	Component     string
	EventType     string
	Timestamp     time.Time
	Metadata      map[string]interface{}
}

// Open opens (creating if necessary) the SQLite database at path in WAL
// mode and runs migrations. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := path
	if path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}

	// A single writer avoids SQLITE_BUSY across the process's own
	// goroutines; WAL mode still allows readers to proceed concurrently.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to event store: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating event store: %w", err)
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			correlation_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			component TEXT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_correlation_id ON session_events(correlation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_timestamp ON session_events(timestamp)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

// Append inserts one event row. The store has no Update; its only delete
// path is PruneOlderThan, which no component calls, so rows written by the
// hook, bot and orchestrator are never removed.
func (s *Store) Append(ctx context.Context, e Event) error {
	if e.CorrelationID == "" {
		return fmt.Errorf("event correlation_id is required")
	}
	if e.Component == "" {
		return fmt.Errorf("event component is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event event_type is required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling event metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_events
			(correlation_id, workspace_id, session_id, component, event_type, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.CorrelationID, e.WorkspaceID, e.SessionID, e.Component, e.EventType, e.Timestamp.UnixNano(), metadataJSON)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// ByCorrelationID returns every event recorded under correlationID, ordered
// by timestamp, reconstructing the full cross-component timeline for one
// session-workspace pair (spec.md §4.4 "Tracing a session end-to-end").
func (s *Store) ByCorrelationID(ctx context.Context, correlationID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correlation_id, workspace_id, session_id, component, event_type, timestamp, metadata
		FROM session_events
		WHERE correlation_id = ?
		ORDER BY timestamp ASC
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var metadataJSON []byte
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.WorkspaceID, &e.SessionID, &e.Component, &e.EventType, &ts, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling event metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneOlderThan deletes events older than before and returns the count
// removed. No component calls it; the Bot's periodic timers sweep
// callbacks only, not the event store.
func (s *Store) PruneOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM session_events WHERE timestamp < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, exported for migrations tooling
// and tests that need to assert on raw schema state.
func (s *Store) DB() *sql.DB {
	return s.db
}
