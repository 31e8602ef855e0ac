package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx connection behaviour the store needs; both
// *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists wallets and their ledger in Postgres. The version column
// implements optimistic concurrency: every balance write is conditional on
// the version observed at read time.
type PGStore struct {
	DB DBTX
}

// WithTx returns a store bound to the provided transaction so wallet writes
// participate in the caller's unit of work.
func (s PGStore) WithTx(tx pgx.Tx) PGStore {
	return PGStore{DB: tx}
}

const accountColumns = `id, user_id, balance, total_credits, total_debits, is_blocked, version, created_at, updated_at`

func (s PGStore) scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.Balance, &a.TotalCredits, &a.TotalDebits, &a.Blocked, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

// GetOrCreate returns the user's wallet, inserting an empty one on first
// access. The upsert keeps concurrent first-touch requests from racing.
func (s PGStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (Account, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO wallets (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+accountColumns,
		uuid.New(), userID)
	return s.scanAccount(row)
}

// GetByUser returns the user's wallet without creating one.
func (s PGStore) GetByUser(ctx context.Context, userID uuid.UUID) (Account, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM wallets WHERE user_id = $1`, userID)
	return s.scanAccount(row)
}

// Get returns the wallet by id.
func (s PGStore) Get(ctx context.Context, walletID uuid.UUID) (Account, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM wallets WHERE id = $1`, walletID)
	return s.scanAccount(row)
}

// withTx runs fn atomically. Pool-backed stores open a transaction around
// fn; stores already bound to a transaction (order creation runs the debit
// inside the order's unit of work) get a savepoint via Tx.Begin.
func (s PGStore) withTx(ctx context.Context, fn func(db DBTX) error) error {
	b, ok := s.DB.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		return fn(s.DB)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("wallet: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ApplyTransaction writes the balance update and the ledger row in one
// transaction guarded by the version check, so the balance never advances
// without its ledger entry. A zero-row update means another writer advanced
// the version first.
func (s PGStore) ApplyTransaction(ctx context.Context, updated Account, expectedVersion int64, txn Transaction) error {
	return s.withTx(ctx, func(db DBTX) error {
		tag, err := db.Exec(ctx, `
			UPDATE wallets
			SET balance = $1, total_credits = $2, total_debits = $3, version = $4, updated_at = $5
			WHERE id = $6 AND version = $7 AND is_blocked = FALSE AND $1 >= 0`,
			updated.Balance, updated.TotalCredits, updated.TotalDebits, updated.Version, updated.UpdatedAt,
			updated.ID, expectedVersion)
		if err != nil {
			return fmt.Errorf("wallet: update balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		_, err = db.Exec(ctx, `
			INSERT INTO wallet_transactions
				(id, wallet_id, tx_type, amount, balance_after, category, status, note, related_order, reversal_of, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.BalanceAfter, txn.Category, txn.Status,
			nullableString(txn.Note), txn.RelatedOrder, txn.ReversalOf, txn.CreatedAt)
		if err != nil {
			return fmt.Errorf("wallet: insert transaction: %w", err)
		}
		return nil
	})
}

// ClaimReversal marks the original reversed before the opposite transaction
// is applied; conditional so concurrent reversals claim it at most once.
func (s PGStore) ClaimReversal(ctx context.Context, originalID, reversedBy uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE wallet_transactions
		SET status = 'reversed', reversed_by = $1
		WHERE id = $2 AND status = 'completed' AND reversed_by IS NULL`,
		reversedBy, originalID)
	if err != nil {
		return fmt.Errorf("wallet: claim reversal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

// ReleaseReversal restores a claimed original whose opposite transaction
// failed to apply.
func (s PGStore) ReleaseReversal(ctx context.Context, originalID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE wallet_transactions
		SET status = 'completed', reversed_by = NULL
		WHERE id = $1 AND status = 'reversed'`,
		originalID)
	if err != nil {
		return fmt.Errorf("wallet: release reversal: %w", err)
	}
	return nil
}

const txnColumns = `id, wallet_id, tx_type, amount, balance_after, category, status, COALESCE(note, ''), related_order, reversal_of, reversed_by, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Category, &t.Status, &t.Note, &t.RelatedOrder, &t.ReversalOf, &t.ReversedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

// GetTransaction returns the ledger transaction by id.
func (s PGStore) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+txnColumns+` FROM wallet_transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// ListTransactions returns the wallet's transactions, newest first.
func (s PGStore) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int32) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+txnColumns+`
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet: list transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
