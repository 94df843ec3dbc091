// Package sqlite is the offline event store: every record event is kept as a
// JSON payload in a single table of a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/montauban/internal/record"
)

// ErrEmptyPath is returned by Open when no database path is given.
var ErrEmptyPath = errors.New("sqlite: empty database path")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	session_id TEXT NOT NULL,
	player_id  TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
`

// EventStore is a record.Sink backed by SQLite.
type EventStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens or creates the database at path, creating parent directories and
// the events table as needed.
//
// Postcondition: Returns a ready EventStore or a non-nil error; nothing is left open on error.
func Open(path string) (*EventStore, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &EventStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// newID returns a ULID strictly greater than every id handed out before by s.
func (s *EventStore) newID(at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Write appends e.
func (s *EventStore) Write(ctx context.Context, e record.Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s event: %w", e.Kind, err)
	}
	id, err := s.newID(time.Now())
	if err != nil {
		return fmt.Errorf("sqlite: event id: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, kind, session_id, player_id, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(e.Kind), e.SessionID, e.PlayerID, string(payload), e.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s event: %w", e.Kind, err)
	}
	return nil
}

// Session returns the events recorded for sessionID in write order.
func (s *EventStore) Session(ctx context.Context, sessionID string) ([]record.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []record.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event: %w", err)
		}
		var e record.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("sqlite: decoding event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByKind returns the number of stored events per kind.
func (s *EventStore) CountByKind(ctx context.Context) (map[record.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting events: %w", err)
	}
	defer rows.Close()

	out := make(map[record.Kind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning count: %w", err)
		}
		out[record.Kind(kind)] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *EventStore) Close() error {
	return s.db.Close()
}
