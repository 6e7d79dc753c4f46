package storage

import (
	"errors"
	"sync"
)

// MemoryKV keeps values in memory. Used by tests and `serve --ephemeral`.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
	// FailWrites makes Set return an error, for exercising write failures.
	FailWrites bool
}

// NewMemoryKV returns an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errWriteDisabled
	}
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Close() error { return nil }

var errWriteDisabled = errors.New("storage: writes disabled")
