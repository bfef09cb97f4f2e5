package prefs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"loyaltyloop/internal/adapters/storage"
)

// SQLiteStore implements Store using the device_pref table.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore creates a new preference store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Get returns the stored value and whether it was present.
// PRE: deviceID is non-empty, key is a persisted key
func (s *SQLiteStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	if err := check(deviceID, key); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM device_pref WHERE device_id = ? AND key = ?",
		deviceID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts the value.
// POST: Get(deviceID, key) returns value
func (s *SQLiteStore) Set(ctx context.Context, deviceID, key, value string) error {
	if err := check(deviceID, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_pref (device_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		deviceID, key, value, s.now().UTC().Format(storage.TimeFormat),
	)
	return err
}

// Clear removes every preference of the device.
func (s *SQLiteStore) Clear(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrEmptyDevice
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM device_pref WHERE device_id = ?", deviceID)
	return err
}
