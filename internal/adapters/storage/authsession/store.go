// Package authsession persists which account is signed in on which device.
package authsession

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a device stays signed in without a new sign-in.
const DefaultTTL = 30 * 24 * time.Hour

// ErrNotFound is returned when a device has no live session.
var ErrNotFound = errors.New("auth session not found")

// Record binds one device to one account until ExpiresAt.
type Record struct {
	DeviceID  string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is no longer usable at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists auth session records.
type Store interface {
	Get(ctx context.Context, deviceID string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, deviceID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
