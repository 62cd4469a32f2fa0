// Package store provides SQLite-backed session history for the engine.
// It mirrors the file-based event log and summary so tooling can query past
// runs; the orchestrator itself never reads it back to make decisions.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at_unix  INTEGER NOT NULL DEFAULT 0,
	ended_at_unix    INTEGER NOT NULL DEFAULT 0,
	phases_completed INTEGER NOT NULL DEFAULT 0,
	initial_capital  REAL NOT NULL DEFAULT 0.0,
	current_equity   REAL NOT NULL DEFAULT 0.0,
	trades           INTEGER NOT NULL DEFAULT 0,
	wins             INTEGER NOT NULL DEFAULT 0,
	losses           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS session_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	phase        TEXT NOT NULL DEFAULT '',
	level        TEXT NOT NULL DEFAULT 'info',
	message      TEXT NOT NULL DEFAULT '',
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events ON session_events(session_id, id);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
