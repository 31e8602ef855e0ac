package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-bazaar/internal/order"
)

// PGRepo persists invoice headers in Postgres. The unique index on order_id
// is what makes generation idempotent under concurrency.
type PGRepo struct {
	DB order.DBTX
}

func (r PGRepo) Insert(ctx context.Context, h Header) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, order_id, user_id, issued_at)
		VALUES ($1, $2, $3, $4, $5)`,
		h.ID, h.Number, h.OrderID, h.UserID, h.IssuedAt)
	if err != nil {
		return fmt.Errorf("invoice: insert: %w", err)
	}
	return nil
}

func scanHeader(row pgx.Row) (Header, error) {
	var h Header
	err := row.Scan(&h.ID, &h.Number, &h.OrderID, &h.UserID, &h.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Header{}, ErrNotFound
	}
	if err != nil {
		return Header{}, fmt.Errorf("invoice: scan: %w", err)
	}
	return h, nil
}

const headerColumns = `id, invoice_number, order_id, user_id, issued_at`

func (r PGRepo) Get(ctx context.Context, id uuid.UUID) (Header, error) {
	return scanHeader(r.DB.QueryRow(ctx, `SELECT `+headerColumns+` FROM invoices WHERE id = $1`, id))
}

func (r PGRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (Header, error) {
	return scanHeader(r.DB.QueryRow(ctx, `SELECT `+headerColumns+` FROM invoices WHERE order_id = $1`, orderID))
}
