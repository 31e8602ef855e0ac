package order

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-bazaar/internal/sequence"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

// PGTxManager opens one Postgres transaction per unit of work and binds the
// order, wallet and sequence stores to it. Stock decrement, order insert and
// wallet debit commit or roll back together.
type PGTxManager struct {
	Pool *pgxpool.Pool
}

// WithinTx runs fn inside a transaction.
func (m PGTxManager) WithinTx(ctx context.Context, fn func(st Stores) error) error {
	tx, err := m.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("order: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	st := Stores{
		Orders:   PGRepo{DB: tx},
		Wallet:   wallet.PGStore{DB: tx},
		Sequence: sequence.PGStore{DB: tx},
	}
	if err := fn(st); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("order: commit tx: %w", err)
	}
	return nil
}
