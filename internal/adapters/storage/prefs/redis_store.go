package prefs

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces the per-device hashes.
const DefaultRedisPrefix = "loyaltyloop:prefs:"

// RedisStore keeps each device's preferences in one hash.
// The hash TTL is refreshed on every write so idle devices age out.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps hashes forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: DefaultRedisPrefix, ttl: ttl}
}

// NewRedisClient builds a client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) key(deviceID string) string {
	return s.prefix + deviceID
}

// Get returns the stored value and whether it was present.
func (s *RedisStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	if err := check(deviceID, key); err != nil {
		return "", false, err
	}
	v, err := s.client.HGet(ctx, s.key(deviceID), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set writes the field and refreshes the hash TTL in one round trip.
func (s *RedisStore) Set(ctx context.Context, deviceID, key, value string) error {
	if err := check(deviceID, key); err != nil {
		return err
	}
	k := s.key(deviceID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	return err
}

// Clear removes the device hash.
func (s *RedisStore) Clear(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrEmptyDevice
	}
	return s.client.Del(ctx, s.key(deviceID)).Err()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
