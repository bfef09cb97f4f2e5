package prefs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyaltyloop/internal/adapters/storage"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func newRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour)
}

// backends runs the same contract against every Store implementation.
var backends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"memory", func(*testing.T) Store { return NewMemoryStore() }},
	{"sqlite", newSQLiteStore},
	{"redis", newRedisStore},
}

func TestStore_Contract(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "dev-1", KeyBypassLogin)
			require.NoError(t, err)
			assert.False(t, ok, "fresh device should have no value")

			require.NoError(t, s.Set(ctx, "dev-1", KeyBypassLogin, "true"))
			require.NoError(t, s.Set(ctx, "dev-1", KeyUserRole, "staff"))
			require.NoError(t, s.Set(ctx, "dev-1", KeyUserRole, "admin"))

			v, ok, err := s.Get(ctx, "dev-1", KeyUserRole)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "admin", v)

			_, ok, err = s.Get(ctx, "dev-2", KeyUserRole)
			require.NoError(t, err)
			assert.False(t, ok, "devices must not share preferences")

			require.NoError(t, s.Clear(ctx, "dev-1"))
			_, ok, err = s.Get(ctx, "dev-1", KeyBypassLogin)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_RejectsUnknownKeys(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			err := s.Set(ctx, "dev-1", "theme", "dark")
			assert.True(t, errors.Is(err, ErrUnknownKey), "got %v", err)

			_, _, err = s.Get(ctx, "dev-1", "theme")
			assert.True(t, errors.Is(err, ErrUnknownKey), "got %v", err)

			assert.ErrorIs(t, s.Set(ctx, "", KeyUserRole, "owner"), ErrEmptyDevice)
		})
	}
}

func TestRedisStore_RefreshesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	defer client.Close()
	s := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "dev-1", KeySetupComplete, "true"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultRedisPrefix+"dev-1"))

	mr.FastForward(59 * time.Minute)
	require.NoError(t, s.Set(ctx, "dev-1", KeyUserRole, "owner"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultRedisPrefix+"dev-1"))

	mr.FastForward(61 * time.Minute)
	_, ok, err := s.Get(ctx, "dev-1", KeyUserRole)
	require.NoError(t, err)
	assert.False(t, ok, "idle device should expire")
	require.NoError(t, s.Ping(ctx))
}

func TestScope(t *testing.T) {
	m := NewMemoryStore()
	a := Scope(m, "dev-a")
	b := Scope(m, "dev-b")
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, KeyUserRole, "customer"))

	v, ok, err := a.Get(ctx, KeyUserRole)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "customer", v)

	_, ok, _ = b.Get(ctx, KeyUserRole)
	assert.False(t, ok)
	assert.Equal(t, "dev-a", a.DeviceID())
}
