package auditmirror

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/noesis-run/noesis/internal/eventlog"
)

func newMockMirror(t *testing.T) (*Mirror, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Mirror{db: sqlx.NewDb(db, "postgres")}, mock
}

func TestRecordSkipsUnmirroredTypes(t *testing.T) {
	m, mock := newMockMirror(t)
	ev := eventlog.Event{Seq: 1, Type: eventlog.TypeGenesis, Data: map[string]any{}}

	if err := m.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no SQL to run for an unmirrored event type: %v", err)
	}
}

func TestRecordInsertsMirroredType(t *testing.T) {
	m, mock := newMockMirror(t)
	ev := eventlog.Event{
		Seq:  2,
		Type: eventlog.TypeOperation,
		Data: map[string]any{"operation_id": "state.summary"},
		Hash: "abc123",
	}

	mock.ExpectExec("INSERT INTO mirrored_events").
		WithArgs(ev.Seq, string(ev.Type), ev.Timestamp, sqlmock.AnyArg(), ev.Hash).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := m.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet SQL expectations: %v", err)
	}
}
