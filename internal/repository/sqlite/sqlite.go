// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go build of SQLite, so the binary needs no C
// toolchain. ":memory:" gives each test a throwaway database.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB: a connection pool (NOT a single connection!)
//   - sql.Row: a single result row
//   - sql.Rows: multiple result rows (must be closed!)
//
// Every mutation in this package is one SQL statement. SQLite runs each
// statement atomically, which is what gives the service layer its
// all-or-nothing guarantee without in-process locks.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements both
// repository.UserRepository and repository.RecommendationRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/hypeshelf.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each pooled connection to ":memory:" would otherwise see its own
	// empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Deliberately no FOREIGN KEY from recommendations.owner_id to users.id:
	// deleting a user leaves their recommendations in place, shown as
	// "Unknown".
	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates tables and indexes. CREATE ... IF NOT EXISTS keeps it
// idempotent across restarts.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			external_id  TEXT NOT NULL UNIQUE,
			email        TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url   TEXT NOT NULL DEFAULT '',
			role         TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recommendations (
			id            TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			title         TEXT NOT NULL,
			genre         TEXT NOT NULL,
			link          TEXT NOT NULL DEFAULT '',
			blurb         TEXT NOT NULL,
			is_staff_pick INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_recommendations_created_at ON recommendations(created_at);
		CREATE INDEX IF NOT EXISTS idx_recommendations_owner_id ON recommendations(owner_id);
		CREATE INDEX IF NOT EXISTS idx_recommendations_genre ON recommendations(genre);
	`)
	if err != nil {
		return fmt.Errorf("creating recommendations table: %w", err)
	}

	return nil
}
