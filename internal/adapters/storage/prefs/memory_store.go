package prefs

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences in process memory. Used by tests and LOYALTY_PREFS_BACKEND=memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, deviceID, key string) (string, bool, error) {
	if err := check(deviceID, key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[deviceID][key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, deviceID, key, value string) error {
	if err := check(deviceID, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[deviceID] == nil {
		m.data[deviceID] = make(map[string]string)
	}
	m.data[deviceID][key] = value
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrEmptyDevice
	}
	m.mu.Lock()
	delete(m.data, deviceID)
	m.mu.Unlock()
	return nil
}
