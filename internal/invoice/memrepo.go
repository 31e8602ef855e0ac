package invoice

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemRepo is an in-memory Repo for tests.
type MemRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]Header
	byOrder map[uuid.UUID]Header
}

// NewMemRepo returns an empty in-memory repo.
func NewMemRepo() *MemRepo {
	return &MemRepo{
		byID:    make(map[uuid.UUID]Header),
		byOrder: make(map[uuid.UUID]Header),
	}
}

func (m *MemRepo) Insert(_ context.Context, h Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byOrder[h.OrderID]; exists {
		return fmt.Errorf("invoice: duplicate for order %s", h.OrderID)
	}
	m.byID[h.ID] = h
	m.byOrder[h.OrderID] = h
	return nil
}

func (m *MemRepo) Get(_ context.Context, id uuid.UUID) (Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byID[id]
	if !ok {
		return Header{}, ErrNotFound
	}
	return h, nil
}

func (m *MemRepo) GetByOrder(_ context.Context, orderID uuid.UUID) (Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byOrder[orderID]
	if !ok {
		return Header{}, ErrNotFound
	}
	return h, nil
}
