package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and local tooling. It
// enforces the same version guard as the Postgres store so concurrency
// behaviour can be exercised without a database.
type MemStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]Account   // keyed by wallet id
	byUser   map[uuid.UUID]uuid.UUID // user id -> wallet id
	txns     map[uuid.UUID]Transaction
	order    []uuid.UUID // transaction ids in creation order
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		accounts: make(map[uuid.UUID]Account),
		byUser:   make(map[uuid.UUID]uuid.UUID),
		txns:     make(map[uuid.UUID]Transaction),
	}
}

// GetOrCreate returns the user's wallet, creating an empty one when absent.
func (m *MemStore) GetOrCreate(_ context.Context, userID uuid.UUID) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byUser[userID]; ok {
		return m.accounts[id], nil
	}
	now := time.Now().UTC()
	account := Account{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	m.accounts[account.ID] = account
	m.byUser[userID] = account.ID
	return account, nil
}

// GetByUser returns the user's wallet without creating one.
func (m *MemStore) GetByUser(_ context.Context, userID uuid.UUID) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUser[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return m.accounts[id], nil
}

// Get returns the wallet by id.
func (m *MemStore) Get(_ context.Context, walletID uuid.UUID) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[walletID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

// ApplyTransaction persists the account update and transaction atomically,
// guarded by the expected version.
func (m *MemStore) ApplyTransaction(_ context.Context, updated Account, expectedVersion int64, txn Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.accounts[updated.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	m.accounts[updated.ID] = updated
	m.txns[txn.ID] = txn
	m.order = append(m.order, txn.ID)
	return nil
}

// ClaimReversal flips the original to reversed if it is still completed and
// unreversed; concurrent claims lose with ErrAlreadyReversed.
func (m *MemStore) ClaimReversal(_ context.Context, originalID, reversedBy uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	original, ok := m.txns[originalID]
	if !ok {
		return ErrNotFound
	}
	if original.Status != StatusCompleted || original.ReversedBy != nil {
		return ErrAlreadyReversed
	}
	original.Status = StatusReversed
	original.ReversedBy = &reversedBy
	m.txns[originalID] = original
	return nil
}

// ReleaseReversal restores a claimed original after a failed reversal apply.
func (m *MemStore) ReleaseReversal(_ context.Context, originalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	original, ok := m.txns[originalID]
	if !ok {
		return ErrNotFound
	}
	if original.Status == StatusReversed {
		original.Status = StatusCompleted
		original.ReversedBy = nil
		m.txns[originalID] = original
	}
	return nil
}

// GetTransaction returns the transaction by id.
func (m *MemStore) GetTransaction(_ context.Context, id uuid.UUID) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return txn, nil
}

// ListTransactions returns the wallet's transactions, newest first.
func (m *MemStore) ListTransactions(_ context.Context, walletID uuid.UUID, limit, offset int32) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Transaction, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		if txn := m.txns[m.order[i]]; txn.WalletID == walletID {
			all = append(all, txn)
		}
	}
	start := int(offset)
	if start >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && start+int(limit) < end {
		end = start + int(limit)
	}
	return all[start:end], nil
}

// AllTransactions returns every transaction for the wallet in creation
// order. Tests use it to verify the ledger fold invariant.
func (m *MemStore) AllTransactions(walletID uuid.UUID) []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, 0)
	for _, id := range m.order {
		if txn := m.txns[id]; txn.WalletID == walletID {
			out = append(out, txn)
		}
	}
	return out
}
