package kv

import (
	"context"
	"sync"
)

// Memory is a process-local Backend. Values are stored as given; callers that
// hold slices inside T must not mutate a value after Put.
type Memory[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{entries: make(map[string]T)}
}

func (m *Memory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory[T]) Put(ctx context.Context, key string, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *Memory[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory[T]) Sweep(ctx context.Context, stale func(key string, value T) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, v := range m.entries {
		if stale(k, v) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]T)
	return nil
}
