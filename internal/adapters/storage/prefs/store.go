// Package prefs stores the small per-device key/value state that survives reloads.
//
// Only three keys exist: bypassLogin, userRole and setupComplete. Values are the
// literal strings the session layer writes ("true"/"false", a role name).
package prefs

import (
	"context"
	"errors"
	"fmt"
)

// Persisted keys.
const (
	KeyBypassLogin   = "bypassLogin"
	KeyUserRole      = "userRole"
	KeySetupComplete = "setupComplete"
)

// ErrUnknownKey is returned for keys outside the persisted set.
var ErrUnknownKey = errors.New("unknown preference key")

// ErrEmptyDevice is returned when no device id is supplied.
var ErrEmptyDevice = errors.New("device id cannot be empty")

// Store persists preferences per device.
type Store interface {
	Get(ctx context.Context, deviceID, key string) (string, bool, error)
	Set(ctx context.Context, deviceID, key, value string) error
	Clear(ctx context.Context, deviceID string) error
}

// ValidKey reports whether key is one of the persisted keys.
func ValidKey(key string) bool {
	switch key {
	case KeyBypassLogin, KeyUserRole, KeySetupComplete:
		return true
	}
	return false
}

func check(deviceID, key string) error {
	if deviceID == "" {
		return ErrEmptyDevice
	}
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// Scoped binds a Store to one device.
type Scoped struct {
	store    Store
	deviceID string
}

// Scope returns the view of store for deviceID.
func Scope(store Store, deviceID string) *Scoped {
	return &Scoped{store: store, deviceID: deviceID}
}

// DeviceID returns the device this view is bound to.
func (s *Scoped) DeviceID() string { return s.deviceID }

// Get returns the value for key on the bound device.
func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.deviceID, key)
}

// Set writes key on the bound device.
func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.deviceID, key, value)
}
