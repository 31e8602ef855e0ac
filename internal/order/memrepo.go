package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/sequence"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

// MemRepo is an in-memory Repo for tests.
type MemRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]Product
	coupons  map[string]pricing.Coupon
	orders   map[uuid.UUID]Order
}

// NewMemRepo returns an empty in-memory repo.
func NewMemRepo() *MemRepo {
	return &MemRepo{
		products: make(map[uuid.UUID]Product),
		coupons:  make(map[string]pricing.Coupon),
		orders:   make(map[uuid.UUID]Order),
	}
}

// SeedProduct adds or replaces a product.
func (m *MemRepo) SeedProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// SeedCoupon adds or replaces a coupon.
func (m *MemRepo) SeedCoupon(c pricing.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[c.Code] = c
}

func (m *MemRepo) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return p, nil
}

func (m *MemRepo) DecrementStock(_ context.Context, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.Stock < qty {
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, id)
	}
	p.Stock -= qty
	m.products[id] = p
	return nil
}

func (m *MemRepo) IncrementStock(_ context.Context, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	p.Stock += qty
	m.products[id] = p
	return nil
}

func (m *MemRepo) GetCoupon(_ context.Context, code string) (pricing.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return pricing.Coupon{}, fmt.Errorf("%w: coupon %s", ErrNotFound, code)
	}
	return c, nil
}

func (m *MemRepo) IncrementCouponUsage(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return fmt.Errorf("%w: coupon %s", ErrNotFound, code)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return fmt.Errorf("coupon %s: %w", code, errors.Join(pricing.ErrCouponInapplicable, pricing.ErrUsageLimitReached))
	}
	c.UsedCount++
	m.coupons[code] = c
	return nil
}

func (m *MemRepo) Insert(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MemRepo) Get(_ context.Context, id uuid.UUID) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *MemRepo) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int32) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemRepo) CountForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, o := range m.orders {
		if o.UserID == userID {
			total++
		}
	}
	return total, nil
}

func (m *MemRepo) SetStatus(_ context.Context, id uuid.UUID, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

// Stock reports the current stock level, for test assertions.
func (m *MemRepo) Stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

// MemTxManager passes the same long-lived stores to every unit of work. It
// provides no rollback, which is acceptable for tests exercising the happy
// and validation paths.
type MemTxManager struct {
	Stores Stores
}

// NewMemTxManager wires in-memory stores for all three concerns.
func NewMemTxManager() (MemTxManager, *MemRepo, *wallet.MemStore) {
	repo := NewMemRepo()
	ws := wallet.NewMemStore()
	return MemTxManager{Stores: Stores{
		Orders:   repo,
		Wallet:   ws,
		Sequence: sequence.NewMemStore(),
	}}, repo, ws
}

// WithinTx runs fn against the shared stores.
func (m MemTxManager) WithinTx(_ context.Context, fn func(st Stores) error) error {
	return fn(m.Stores)
}
