package store

import (
	"context"
	"database/sql"

	"github.com/quantpilot/engine/internal/domain"
)

// Sink mirrors the append-only event log into the session_events table. It
// satisfies the eventlog.Sink contract so it can ride along as a tee mirror;
// mirror failures never reach the orchestrator.
type Sink struct {
	DB     *sql.DB
	events EventRepo
}

// NewSink creates a store-backed event sink.
func NewSink(db *sql.DB) *Sink {
	return &Sink{DB: db}
}

// Append inserts one event row. SQLite serializes writers, so concurrent
// appends from the orchestrator and heartbeat goroutines are safe.
func (s *Sink) Append(event domain.Event) error {
	return s.events.Append(context.Background(), s.DB, event)
}

// ReadAll returns every mirrored event in write order.
func (s *Sink) ReadAll() ([]domain.Event, error) {
	return s.events.ListAll(context.Background(), s.DB)
}

// SaveSession upserts the session row, satisfying the orchestrator's
// HistoryRecorder dependency.
func (s *Sink) SaveSession(ctx context.Context, rec domain.SessionRecord) error {
	var sessions SessionRepo
	return sessions.Save(ctx, s.DB, rec)
}
