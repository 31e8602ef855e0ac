package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/tax"
)

// DBTX is the subset of pgx connection behaviour the repo needs; both
// *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepo persists orders, line snapshots, products and coupons in Postgres.
type PGRepo struct {
	DB DBTX
}

// WithTx returns a repo bound to the provided transaction.
func (r PGRepo) WithTx(tx pgx.Tx) PGRepo {
	return PGRepo{DB: tx}
}

// GetProduct loads the pricing-relevant product snapshot.
func (r PGRepo) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	var rateBps int64
	err := r.DB.QueryRow(ctx, `
		SELECT id, title, hsn_code, unit_price, discount, gst_rate_bps, stock
		FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.HSNCode, &p.Price, &p.Discount, &rateBps, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("order: load product: %w", err)
	}
	p.GSTRate, err = money.RateFromBasisPoints(rateBps)
	if err != nil {
		return Product{}, fmt.Errorf("order: product %s: %w", id, err)
	}
	return p, nil
}

// DecrementStock reserves stock for an order line. The guard in the WHERE
// clause makes oversell impossible under concurrency.
func (r PGRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return fmt.Errorf("order: decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, id)
	}
	return nil
}

// IncrementStock returns stock on cancelation.
func (r PGRepo) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	_, err := r.DB.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, id, qty)
	if err != nil {
		return fmt.Errorf("order: increment stock: %w", err)
	}
	return nil
}

// GetCoupon loads a coupon by code.
func (r PGRepo) GetCoupon(ctx context.Context, code string) (pricing.Coupon, error) {
	var c pricing.Coupon
	var percentBps int64
	err := r.DB.QueryRow(ctx, `
		SELECT code, kind, value, percent_bps, max_discount, min_order,
		       usage_limit, used_count, valid_from, valid_to
		FROM coupons WHERE code = $1`, code).
		Scan(&c.Code, &c.Kind, &c.Value, &percentBps, &c.MaxDiscount, &c.MinOrder,
			&c.UsageLimit, &c.UsedCount, &c.ValidFrom, &c.ValidTo)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Coupon{}, fmt.Errorf("%w: coupon %s", ErrNotFound, code)
	}
	if err != nil {
		return pricing.Coupon{}, fmt.Errorf("order: load coupon: %w", err)
	}
	c.Percent, err = money.RateFromBasisPoints(percentBps)
	if err != nil {
		return pricing.Coupon{}, fmt.Errorf("order: coupon %s: %w", code, err)
	}
	return c, nil
}

// IncrementCouponUsage counts a redemption inside the order transaction.
// The guard in the WHERE clause keeps concurrent orders from pushing
// used_count past the limit after both validated against the same snapshot.
func (r PGRepo) IncrementCouponUsage(ctx context.Context, code string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, code)
	if err != nil {
		return fmt.Errorf("order: increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon %s: %w", code, errors.Join(pricing.ErrCouponInapplicable, pricing.ErrUsageLimitReached))
	}
	return nil
}

// Insert persists the order header and its line snapshots.
func (r PGRepo) Insert(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders
			(id, order_number, user_id, status, buyer_state, seller_state, coupon_code,
			 subtotal, line_discount, coupon_discount, taxable_amount,
			 cgst, sgst, igst, gst, shipping, wallet_used, grand_total,
			 wallet_txn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		o.ID, o.Number, o.UserID, o.Status, o.BuyerState, o.SellerState, nullableString(o.CouponCode),
		o.Pricing.Subtotal, o.Pricing.LineDiscount, o.Pricing.CouponDiscount, o.Pricing.Taxable,
		o.Pricing.CGST, o.Pricing.SGST, o.Pricing.IGST, o.Pricing.GST,
		o.Pricing.Shipping, o.Pricing.WalletUsed, o.Pricing.GrandTotal,
		o.WalletTxn, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order: insert order: %w", err)
	}
	for i, line := range o.Lines {
		_, err = r.DB.Exec(ctx, `
			INSERT INTO order_items
				(id, order_id, line_no, product_id, hsn_code, unit_price, quantity, discount,
				 gst_rate_bps, taxable_amount, tax_amount, cgst, sgst, igst, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			uuid.New(), o.ID, i+1, line.ProductID, line.HSNCode, line.UnitPrice, line.Quantity, line.Discount,
			line.GSTRate.BasisPoints(), line.Taxable, line.Tax,
			line.Split.CGST, line.Split.SGST, line.Split.IGST, line.Total)
		if err != nil {
			return fmt.Errorf("order: insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, order_number, user_id, status, buyer_state, seller_state,
	COALESCE(coupon_code, ''), coupon_discount, shipping, wallet_used, wallet_txn, created_at, updated_at`

type orderHeader struct {
	order          Order
	couponDiscount money.Money
	shipping       money.Money
	walletUsed     money.Money
}

func scanHeader(row pgx.Row) (orderHeader, error) {
	var h orderHeader
	o := &h.order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.BuyerState, &o.SellerState,
		&o.CouponCode, &h.couponDiscount, &h.shipping, &h.walletUsed, &o.WalletTxn, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orderHeader{}, ErrNotFound
	}
	if err != nil {
		return orderHeader{}, fmt.Errorf("order: scan order: %w", err)
	}
	return h, nil
}

// hydrate loads the line snapshots and rebuilds the breakdown from them; the
// stored header totals exist for querying, the lines are the source of truth.
func (r PGRepo) hydrate(ctx context.Context, h orderHeader) (Order, error) {
	lines, err := r.listItems(ctx, h.order.ID)
	if err != nil {
		return Order{}, err
	}
	h.order.Lines = lines
	h.order.Pricing = pricing.Recompute(lines, h.couponDiscount, h.shipping, h.walletUsed)
	return h.order, nil
}

func (r PGRepo) listItems(ctx context.Context, orderID uuid.UUID) ([]tax.Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, hsn_code, unit_price, quantity, discount, gst_rate_bps,
		       taxable_amount, tax_amount, cgst, sgst, igst, line_total
		FROM order_items WHERE order_id = $1
		ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order: list items: %w", err)
	}
	defer rows.Close()
	var lines []tax.Line
	for rows.Next() {
		var line tax.Line
		var rateBps int64
		err := rows.Scan(&line.ProductID, &line.HSNCode, &line.UnitPrice, &line.Quantity, &line.Discount,
			&rateBps, &line.Taxable, &line.Tax, &line.Split.CGST, &line.Split.SGST, &line.Split.IGST, &line.Total)
		if err != nil {
			return nil, fmt.Errorf("order: scan item: %w", err)
		}
		line.GSTRate, err = money.RateFromBasisPoints(rateBps)
		if err != nil {
			return nil, err
		}
		line.Gross = line.UnitPrice.MulQty(line.Quantity)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Get loads one order with its lines.
func (r PGRepo) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	h, err := scanHeader(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	return r.hydrate(ctx, h)
}

// ListForUser returns the user's orders, newest first. Headers are collected
// before hydration because item queries cannot run while the list rows are
// still open on the same connection.
func (r PGRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order: list orders: %w", err)
	}
	headers := make([]orderHeader, 0, limit)
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		headers = append(headers, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: list orders: %w", err)
	}
	out := make([]Order, 0, len(headers))
	for _, h := range headers {
		o, err := r.hydrate(ctx, h)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// CountForUser returns the user's order count for pagination headers.
func (r PGRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("order: count orders: %w", err)
	}
	return total, nil
}

// SetStatus transitions the order status conditionally.
func (r PGRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("order: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
