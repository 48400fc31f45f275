// Package localstore is the instance-side capture buffer. Every pattern,
// solution and feedback item lands here first and is pushed to the central
// registry by the sync engine; the instance stays fully usable offline.
package localstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding the instance's local knowledge.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the local store at the given path and applies the
// schema. The parent directory is created if missing.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	signature TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	language TEXT NOT NULL,
	framework TEXT,
	description TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	first_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	severity TEXT NOT NULL DEFAULT 'medium',
	meta_runtime_version TEXT,
	meta_os_family TEXT,
	meta_tool_name TEXT,
	meta_tool_version TEXT,
	synced INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS solutions (
	id TEXT PRIMARY KEY,
	pattern_signature TEXT NOT NULL
		REFERENCES patterns (signature) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	code_snippet TEXT,
	applies_to TEXT NOT NULL DEFAULT '[]',
	verified INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	synced INTEGER NOT NULL DEFAULT 0
);

-- solution_id may reference a cached registry solution that has no row in
-- the local solutions table, so it carries no foreign key.
CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	solution_id TEXT NOT NULL,
	was_helpful INTEGER NOT NULL,
	resolution_time_minutes INTEGER,
	comment TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	synced INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS known_solutions (
	pattern_signature TEXT NOT NULL,
	payload TEXT NOT NULL,
	cached_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (pattern_signature)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patterns_unsynced ON patterns (synced, last_seen);
CREATE INDEX IF NOT EXISTS idx_solutions_unsynced ON solutions (synced, created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_unsynced ON feedback (synced, created_at);
`
