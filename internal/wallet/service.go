package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/obs"
)

var (
	// ErrInvalidAmount is returned for zero or negative credit/debit amounts.
	ErrInvalidAmount = errors.New("wallet: amount must be positive")
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	// It is terminal for the request; retrying without a top-up is pointless.
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	// ErrWalletBlocked is returned when the wallet is administratively frozen.
	ErrWalletBlocked = errors.New("wallet: blocked")
	// ErrNotReversible indicates the transaction cannot be reversed.
	ErrNotReversible = errors.New("wallet: transaction not reversible")
	// ErrAlreadyReversed indicates the transaction was reversed before.
	ErrAlreadyReversed = errors.New("wallet: transaction already reversed")
	// ErrNotCompleted indicates a reversal of a non-completed transaction.
	ErrNotCompleted = errors.New("wallet: transaction not completed")
	// ErrConcurrencyExhausted is surfaced after the internal retry budget
	// for optimistic version conflicts runs out.
	ErrConcurrencyExhausted = errors.New("wallet: concurrency retries exhausted")
)

const defaultMaxRetries = 5

// Service applies credits, debits and reversals to wallet accounts through
// the Store. Version conflicts are retried internally; every other failure
// is terminal for the calling request.
type Service struct {
	Store      Store
	MaxRetries int
	Now        func() time.Time
}

// WithStore returns a copy of the service bound to a different store. Order
// creation uses this to run the wallet debit on a transaction-scoped store
// so the debit commits or aborts together with the order.
func (s *Service) WithStore(st Store) *Service {
	return &Service{Store: st, MaxRetries: s.MaxRetries, Now: s.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) retries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return defaultMaxRetries
}

// Credit adds funds to the user's wallet, creating it on first use.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount money.Money, meta Metadata) (Account, Transaction, error) {
	if amount <= 0 {
		return Account{}, Transaction{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return s.apply(ctx, userID, TxCredit, amount, meta, uuid.New(), nil)
}

// Debit removes funds from the user's wallet. The balance check and the
// write happen under the same version guard, never as separate steps.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount money.Money, meta Metadata) (Account, Transaction, error) {
	if amount <= 0 {
		return Account{}, Transaction{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return s.apply(ctx, userID, TxDebit, amount, meta, uuid.New(), nil)
}

func (s *Service) apply(ctx context.Context, userID uuid.UUID, kind TxType, amount money.Money, meta Metadata, txnID uuid.UUID, reversalOf *uuid.UUID) (Account, Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < s.retries(); attempt++ {
		account, err := s.Store.GetOrCreate(ctx, userID)
		if err != nil {
			return Account{}, Transaction{}, err
		}
		if account.Blocked {
			return Account{}, Transaction{}, ErrWalletBlocked
		}

		updated := account
		switch kind {
		case TxCredit:
			updated.Balance = account.Balance.Add(amount)
			updated.TotalCredits = account.TotalCredits.Add(amount)
		case TxDebit:
			balance, err := account.Balance.Sub(amount)
			if err != nil {
				return Account{}, Transaction{}, fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientBalance, account.Balance, amount)
			}
			updated.Balance = balance
			updated.TotalDebits = account.TotalDebits.Add(amount)
		}
		now := s.now()
		updated.Version = account.Version + 1
		updated.UpdatedAt = now

		txn := Transaction{
			ID:           txnID,
			WalletID:     account.ID,
			Type:         kind,
			Amount:       amount,
			BalanceAfter: updated.Balance,
			Category:     meta.Category,
			Status:       StatusCompleted,
			Note:         meta.Note,
			RelatedOrder: meta.RelatedOrder,
			ReversalOf:   reversalOf,
			CreatedAt:    now,
		}
		err = s.Store.ApplyTransaction(ctx, updated, account.Version, txn)
		if err == nil {
			obs.ObserveWalletTransaction(string(kind), "ok")
			return updated, txn, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			obs.ObserveWalletTransaction(string(kind), "error")
			return Account{}, Transaction{}, err
		}
		obs.ObserveWalletRetry()
		lastErr = err
	}
	obs.ObserveWalletTransaction(string(kind), "conflict")
	return Account{}, Transaction{}, fmt.Errorf("%w: %v", ErrConcurrencyExhausted, lastErr)
}

// Reverse cancels a completed transaction by applying an opposite-direction
// transaction for the same amount and linking the pair bidirectionally. A
// debit-reversal of a credit can still fail with ErrInsufficientBalance.
func (s *Service) Reverse(ctx context.Context, txnID uuid.UUID, reason string) (Transaction, error) {
	original, err := s.Store.GetTransaction(ctx, txnID)
	if err != nil {
		return Transaction{}, err
	}
	if original.Status == StatusReversed {
		return Transaction{}, ErrAlreadyReversed
	}
	if original.Status != StatusCompleted {
		return Transaction{}, fmt.Errorf("%w: status %s", ErrNotCompleted, original.Status)
	}
	if !original.IsReversible() {
		return Transaction{}, ErrNotReversible
	}

	account, err := s.Store.Get(ctx, original.WalletID)
	if err != nil {
		return Transaction{}, err
	}

	opposite := TxDebit
	if original.Type == TxDebit {
		opposite = TxCredit
	}
	meta := Metadata{Category: CategoryReversal, Note: reason, RelatedOrder: original.RelatedOrder}

	// Claim the original before moving any money. Concurrent reversals race
	// on this conditional transition, so the loser stops here with the
	// balance untouched.
	reversalID := uuid.New()
	if err := s.Store.ClaimReversal(ctx, original.ID, reversalID); err != nil {
		return Transaction{}, err
	}
	_, reversal, err := s.apply(ctx, account.UserID, opposite, original.Amount, meta, reversalID, &original.ID)
	if err != nil {
		if relErr := s.Store.ReleaseReversal(ctx, original.ID); relErr != nil {
			return Transaction{}, errors.Join(err, relErr)
		}
		return Transaction{}, err
	}
	return reversal, nil
}

// Balance returns the wallet for the user, creating it when absent.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (Account, error) {
	return s.Store.GetOrCreate(ctx, userID)
}

// History lists the wallet's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int32) (Account, []Transaction, error) {
	account, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return Account{}, nil, err
	}
	txns, err := s.Store.ListTransactions(ctx, account.ID, limit, offset)
	if err != nil {
		return Account{}, nil, err
	}
	return account, txns, nil
}
