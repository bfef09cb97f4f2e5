package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// TimeFormat is the layout used for every TEXT timestamp column.
// Values are written in UTC at fixed width so string comparison orders them.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Open opens the SQLite database at path and applies the schema.
// PRE: path is a file path or ":memory:"
// POST: Returns a ready connection or an error
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		business_id TEXT NOT NULL,
		email_verified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		last_sign_in_at TEXT,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT
	);

	CREATE TABLE IF NOT EXISTS auth_session (
		device_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		FOREIGN KEY (account_id) REFERENCES account(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_auth_session_account ON auth_session(account_id);

	CREATE TABLE IF NOT EXISTS device_pref (
		device_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (device_id, key)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
