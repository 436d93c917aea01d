// Package sqlite implements the repository interfaces on SQLite via the pure
// Go modernc.org/sqlite driver, so the binary builds without CGo anywhere.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB owns the connection pool and the schema. The per-entity repositories
// (NewIssueRepository and friends) share its pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests.
func New(dbPath string) (*DB, error) {
	// _time_format=sqlite stores time.Time columns in a format SQLite's
	// own date functions can read; the driver default is not parseable by
	// DATE().
	dsn := "file:" + dbPath + "?_time_format=sqlite"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_time_format=sqlite"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY under concurrent requests and keeps ":memory:" databases
	// from silently forking per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows reads to proceed while a sync is writing. Foreign keys are
	// off by default in SQLite; we want them for labels/assignees → issues.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS issues (
			id            INTEGER PRIMARY KEY,
			number        INTEGER NOT NULL,
			repository    TEXT NOT NULL,
			title         TEXT NOT NULL,
			body          TEXT NOT NULL DEFAULT '',
			state         TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL,
			closed_at     DATETIME,
			html_url      TEXT NOT NULL DEFAULT '',
			assignee      TEXT,
			milestone     TEXT,
			time_to_close INTEGER,
			UNIQUE(repository, number)
		);
		CREATE INDEX IF NOT EXISTS idx_issues_repository ON issues(repository);
		CREATE INDEX IF NOT EXISTS idx_issues_state ON issues(repository, state);
		CREATE INDEX IF NOT EXISTS idx_issues_updated_at ON issues(updated_at);

		CREATE TABLE IF NOT EXISTS labels (
			issue_id INTEGER NOT NULL REFERENCES issues(id),
			name     TEXT NOT NULL,
			color    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_labels_issue_id ON labels(issue_id);
		CREATE INDEX IF NOT EXISTS idx_labels_name ON labels(name);

		CREATE TABLE IF NOT EXISTS assignees (
			issue_id INTEGER NOT NULL REFERENCES issues(id),
			username TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_assignees_issue_id ON assignees(issue_id);
		CREATE INDEX IF NOT EXISTS idx_assignees_username ON assignees(username);

		CREATE TABLE IF NOT EXISTS sync_status (
			repository    TEXT PRIMARY KEY,
			last_sync     DATETIME NOT NULL,
			status        TEXT NOT NULL DEFAULT 'idle',
			error_message TEXT
		);

		CREATE TABLE IF NOT EXISTS metrics (
			repository        TEXT NOT NULL,
			metric_date       TEXT NOT NULL,
			total_issues      INTEGER NOT NULL DEFAULT 0,
			open_issues       INTEGER NOT NULL DEFAULT 0,
			closed_issues     INTEGER NOT NULL DEFAULT 0,
			avg_time_to_close REAL,
			UNIQUE(repository, metric_date)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			username     TEXT NOT NULL,
			access_token TEXT NOT NULL,
			created_at   DATETIME NOT NULL,
			expires_at   DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}
