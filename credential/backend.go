package credential

import (
	"context"
	"sync"
)

// Backend is the persistent key-value capability the Store writes through.
// A backend that reports Available() == false behaves like storage outside
// a browser: reads are absent and writes are dropped.
type Backend interface {
	Available() bool
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Unavailable is a Backend with no storage behind it.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (Unavailable) Set(context.Context, string, string) error { return nil }

func (Unavailable) Delete(context.Context, ...string) error { return nil }

// Memory keeps values in process memory. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Available() bool { return true }

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.values, k)
	}
	m.mu.Unlock()
	return nil
}
