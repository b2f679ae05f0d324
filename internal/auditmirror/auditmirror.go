// Package auditmirror maintains an optional Postgres mirror of
// VERIFICATION/OPERATION/BLOCK events for queryable audit history. It
// subscribes after the fact and is never a write path for state
// (SPEC_FULL.md §3).
package auditmirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noesis-run/noesis/internal/eventlog"
)

// Mirror writes a subset of event types into a Postgres table for
// queryable audit history.
type Mirror struct {
	db *sqlx.DB
}

var mirroredTypes = map[eventlog.Type]bool{
	eventlog.TypeVerification: true,
	eventlog.TypeOperation:    true,
	eventlog.TypeBlock:        true,
}

// Open connects to dsn. It neither runs migrations nor checks that the
// mirror schema exists: migrations run separately via
// internal/auditmirror/migrations through golang-migrate, so callers can
// choose when a migration pass happens.
func Open(dsn string) (*Mirror, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditmirror: connect: %w", err)
	}
	return &Mirror{db: db}, nil
}

// Record mirrors a single event if its type is in the mirrored subset;
// a no-op for every other type.
func (m *Mirror) Record(ctx context.Context, ev eventlog.Event) error {
	if !mirroredTypes[ev.Type] {
		return nil
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("auditmirror: marshal event data: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO mirrored_events (seq, event_type, timestamp, data, hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (seq) DO NOTHING
	`, ev.Seq, string(ev.Type), ev.Timestamp, data, ev.Hash)
	if err != nil {
		return fmt.Errorf("auditmirror: insert: %w", err)
	}
	return nil
}

// Query returns up to limit mirrored events of the given type, newest
// (highest seq) first.
func (m *Mirror) Query(ctx context.Context, eventType eventlog.Type, limit int) ([]MirroredEvent, error) {
	rows, err := m.db.QueryxContext(ctx, `
		SELECT seq, event_type, timestamp, data, hash
		FROM mirrored_events
		WHERE event_type = $1
		ORDER BY seq DESC
		LIMIT $2
	`, string(eventType), limit)
	if err != nil {
		return nil, fmt.Errorf("auditmirror: query: %w", err)
	}
	defer rows.Close()

	var out []MirroredEvent
	for rows.Next() {
		var row MirroredEvent
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("auditmirror: scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MirroredEvent is one row of the mirror table.
type MirroredEvent struct {
	Seq       uint64 `db:"seq"`
	EventType string `db:"event_type"`
	Timestamp string `db:"timestamp"`
	Data      []byte `db:"data"`
	Hash      string `db:"hash"`
}

func (m *Mirror) Close() error {
	return m.db.Close()
}

// DB exposes the underlying *sql.DB for migration tooling.
func (m *Mirror) DB() *sql.DB {
	return m.db.DB
}
