package authsession

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"loyaltyloop/internal/adapters/storage"
)

// SQLiteStore implements Store using the auth_session table.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new auth session store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the device's record. Expired records are still returned; callers check Expired.
// PRE: deviceID is non-empty
// POST: Returns the record or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, deviceID string) (Record, error) {
	var rec Record
	var created, expires string
	err := s.db.QueryRowContext(ctx,
		"SELECT device_id, account_id, created_at, expires_at FROM auth_session WHERE device_id = ?",
		deviceID,
	).Scan(&rec.DeviceID, &rec.AccountID, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
	return rec, nil
}

// Put creates or replaces the device's record.
// POST: exactly one record exists for rec.DeviceID
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_session (device_id, account_id, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET account_id=excluded.account_id, created_at=excluded.created_at, expires_at=excluded.expires_at`,
		rec.DeviceID,
		rec.AccountID,
		rec.CreatedAt.UTC().Format(storage.TimeFormat),
		rec.ExpiresAt.UTC().Format(storage.TimeFormat),
	)
	return err
}

// Delete removes the device's record. Deleting a missing record is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, deviceID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM auth_session WHERE device_id = ?", deviceID)
	return err
}

// DeleteExpired purges records that expired at or before now.
// POST: Returns the number of rows removed
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM auth_session WHERE expires_at <= ?", now.UTC().Format(storage.TimeFormat))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
