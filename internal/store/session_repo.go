package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quantpilot/engine/internal/domain"
)

// SessionRepo handles persistence for SessionRecord rows.
type SessionRepo struct{}

// Save upserts a session row. The latest state wins, matching the summary
// store's overwrite semantics.
func (r *SessionRepo) Save(ctx context.Context, db *sql.DB, rec domain.SessionRecord) error {
	const q = `INSERT INTO sessions (session_id, status, started_at_unix, ended_at_unix, phases_completed, initial_capital, current_equity, trades, wins, losses)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	status           = excluded.status,
	ended_at_unix    = excluded.ended_at_unix,
	phases_completed = excluded.phases_completed,
	current_equity   = excluded.current_equity,
	trades           = excluded.trades,
	wins             = excluded.wins,
	losses           = excluded.losses`
	_, err := db.ExecContext(ctx, q,
		rec.SessionID,
		string(rec.Status),
		rec.StartedAtUnix,
		rec.EndedAtUnix,
		rec.PhasesCompleted,
		rec.InitialCapital,
		rec.CurrentEquity,
		rec.Trades,
		rec.Wins,
		rec.Losses,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetByID retrieves a session row by its ID.
func (r *SessionRepo) GetByID(ctx context.Context, db *sql.DB, sessionID string) (*domain.SessionRecord, error) {
	const q = `SELECT session_id, status, started_at_unix, ended_at_unix, phases_completed, initial_capital, current_equity, trades, wins, losses
FROM sessions WHERE session_id = ?`

	row := db.QueryRowContext(ctx, q, sessionID)

	var rec domain.SessionRecord
	var status string
	err := row.Scan(&rec.SessionID, &status, &rec.StartedAtUnix, &rec.EndedAtUnix,
		&rec.PhasesCompleted, &rec.InitialCapital, &rec.CurrentEquity,
		&rec.Trades, &rec.Wins, &rec.Losses)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	rec.Status = domain.SessionStatus(status)
	return &rec, nil
}

// ListRecent returns up to limit sessions, newest first.
func (r *SessionRepo) ListRecent(ctx context.Context, db *sql.DB, limit int) ([]domain.SessionRecord, error) {
	const q = `SELECT session_id, status, started_at_unix, ended_at_unix, phases_completed, initial_capital, current_equity, trades, wins, losses
FROM sessions
ORDER BY started_at_unix DESC
LIMIT ?`

	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var status string
		if err := rows.Scan(&rec.SessionID, &status, &rec.StartedAtUnix, &rec.EndedAtUnix,
			&rec.PhasesCompleted, &rec.InitialCapital, &rec.CurrentEquity,
			&rec.Trades, &rec.Wins, &rec.Losses); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Status = domain.SessionStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
