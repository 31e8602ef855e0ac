package sequence

import (
	"context"
	"sync"
)

// MemStore is an in-memory counter store for tests and local tooling.
type MemStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{counters: make(map[string]int64)}
}

// Next atomically advances and returns the counter.
func (m *MemStore) Next(_ context.Context, docType, periodKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docType + ":" + periodKey
	m.counters[key]++
	return m.counters[key], nil
}
