package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the store has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. It is safe to run on every startup.
func (db *DB) RunMigrations() error {
	migration := `
-- Facility configuration document, one row per deployment
CREATE TABLE IF NOT EXISTS facilities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL,
    body TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Completed count snapshots
CREATE TABLE IF NOT EXISTS history_records (
    id TEXT PRIMARY KEY,
    facility_id TEXT NOT NULL,
    count_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    items_counted INTEGER NOT NULL,
    total_value TEXT NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    body TEXT NOT NULL,
    UNIQUE (facility_id, count_id),
    FOREIGN KEY (facility_id) REFERENCES facilities(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_history_sequence ON history_records(facility_id, sequence);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
