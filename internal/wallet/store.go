package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict signals an optimistic concurrency failure; the
	// service retries these a bounded number of times.
	ErrVersionConflict = errors.New("wallet: version conflict")
	// ErrNotFound is returned for unknown wallets or transactions.
	ErrNotFound = errors.New("wallet: not found")
)

// Store is the persistence interface the ledger service operates on.
// ApplyTransaction must atomically persist the updated account (guarded by
// the expected version) together with its new ledger transaction, failing
// with ErrVersionConflict when another writer got there first.
type Store interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (Account, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (Account, error)
	Get(ctx context.Context, walletID uuid.UUID) (Account, error)
	ApplyTransaction(ctx context.Context, updated Account, expectedVersion int64, txn Transaction) error
	// ClaimReversal transitions the original transaction from completed to
	// reversed and records the reversal id, conditional on the original
	// still being completed and unreversed. Concurrent reversals race on
	// this transition; the loser gets ErrAlreadyReversed before any money
	// has moved.
	ClaimReversal(ctx context.Context, originalID, reversedBy uuid.UUID) error
	// ReleaseReversal undoes a claim whose opposite transaction could not be
	// applied, restoring the original to completed and unreversed.
	ReleaseReversal(ctx context.Context, originalID uuid.UUID) error
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int32) ([]Transaction, error)
}
