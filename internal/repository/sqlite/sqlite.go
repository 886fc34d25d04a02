// Package sqlite implements the repository interfaces using SQLite as the
// storage backend. The modernc.org/sqlite driver is pure Go, so builds need
// no CGo toolchain.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite".
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// One *DB value implements all three repository interfaces — the tables are
// too entangled (cascade deletes, cross-table aggregates) to benefit from
// separate connection owners.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions
	// problem surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// important for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The cascade chain
	// users → learning_paths → levels → modules/projects depends on them.
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

// Close closes the connection pool. The server defers this during shutdown
// so the WAL is flushed and the file lock released.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates all tables. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every startup; for anything beyond additive changes you would
// switch to a real migration tool.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			google_id     TEXT UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS learning_paths (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			topic      TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_paths_user_id ON learning_paths(user_id);

		CREATE TABLE IF NOT EXISTS levels (
			id               TEXT PRIMARY KEY,
			learning_path_id TEXT NOT NULL REFERENCES learning_paths(id) ON DELETE CASCADE,
			name             TEXT NOT NULL,
			order_index      INTEGER NOT NULL,
			UNIQUE(learning_path_id, order_index)
		);
		CREATE INDEX IF NOT EXISTS idx_levels_path_id ON levels(learning_path_id);

		CREATE TABLE IF NOT EXISTS modules (
			id           TEXT PRIMARY KEY,
			level_id     TEXT NOT NULL REFERENCES levels(id) ON DELETE CASCADE,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			youtube_url  TEXT NOT NULL DEFAULT '',
			github_url   TEXT NOT NULL DEFAULT '',
			is_completed INTEGER NOT NULL DEFAULT 0,
			notes        TEXT NOT NULL DEFAULT '',
			order_index  INTEGER NOT NULL,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_modules_level_id ON modules(level_id);

		CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			level_id    TEXT NOT NULL REFERENCES levels(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			github_url  TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_projects_level_id ON projects(level_id);

		CREATE TABLE IF NOT EXISTS user_metrics (
			user_id                 TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			total_paths             INTEGER NOT NULL DEFAULT 0,
			completed_paths         INTEGER NOT NULL DEFAULT 0,
			total_modules           INTEGER NOT NULL DEFAULT 0,
			completed_modules       INTEGER NOT NULL DEFAULT 0,
			average_completion_rate INTEGER NOT NULL DEFAULT 0,
			last_updated            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}
