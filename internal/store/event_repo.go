package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

// EventRepo handles persistence for mirrored session events.
type EventRepo struct{}

type eventPayload struct {
	Details map[string]any  `json:"details,omitempty"`
	Metrics *domain.Metrics `json:"metrics,omitempty"`
}

// Append inserts one event row. Insertion order matches write order, so the
// autoincrement id preserves the log's total order.
func (r *EventRepo) Append(ctx context.Context, db *sql.DB, event domain.Event) error {
	payload, err := json.Marshal(eventPayload{Details: event.Details, Metrics: event.Metrics})
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	const q = `INSERT INTO session_events (session_id, event_type, phase, level, message, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, q,
		event.SessionID,
		event.Type,
		event.Phase,
		event.Level,
		event.Message,
		string(payload),
		event.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListBySession returns a session's events in write order.
func (r *EventRepo) ListBySession(ctx context.Context, db *sql.DB, sessionID string) ([]domain.Event, error) {
	const q = `SELECT session_id, event_type, phase, level, message, payload_json, created_at
FROM session_events
WHERE session_id = ?
ORDER BY id ASC`
	return r.list(ctx, db, q, sessionID)
}

// ListAll returns every mirrored event in write order.
func (r *EventRepo) ListAll(ctx context.Context, db *sql.DB) ([]domain.Event, error) {
	const q = `SELECT session_id, event_type, phase, level, message, payload_json, created_at
FROM session_events
ORDER BY id ASC`
	return r.list(ctx, db, q)
}

func (r *EventRepo) list(ctx context.Context, db *sql.DB, q string, args ...any) ([]domain.Event, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload string
		var createdAt int64
		if err := rows.Scan(&e.SessionID, &e.Type, &e.Phase, &e.Level, &e.Message, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var p eventPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		e.Details = p.Details
		e.Metrics = p.Metrics
		e.Timestamp = time.Unix(0, createdAt).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
