// Package state persists the plugin-state surface that does not live in
// vault documents: calendar-only tasks (including imported ones), the
// collapsed-tag list, and the active timer session.
package state

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS calendar_tasks (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL DEFAULT '',
	date     TEXT NOT NULL DEFAULT '',
	time     TEXT NOT NULL DEFAULT '',
	duration INTEGER NOT NULL DEFAULT 0,
	tags     TEXT NOT NULL DEFAULT '[]',
	priority TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL DEFAULT 'todo',
	ics_uid  TEXT NOT NULL DEFAULT '',
	doc_path TEXT NOT NULL DEFAULT '',
	doc_line INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_calendar_tasks_ics_uid ON calendar_tasks(ics_uid);

CREATE TABLE IF NOT EXISTS app_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store wraps a sql.DB with state-specific operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
