package order

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/sequence"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

var (
	// ErrNotFound is returned when an order, product or coupon is absent.
	ErrNotFound = errors.New("order: not found")
	// ErrInsufficientStock is returned when a decrement would go negative.
	ErrInsufficientStock = errors.New("order: insufficient stock")
	// ErrInvalidState is returned for lifecycle transitions the current
	// status does not allow.
	ErrInvalidState = errors.New("order: invalid state transition")
)

// Repo is the order-side persistence surface. Mutating methods are expected
// to run inside the transaction the TxManager opened.
type Repo interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error

	GetCoupon(ctx context.Context, code string) (pricing.Coupon, error)
	IncrementCouponUsage(ctx context.Context, code string) error

	Insert(ctx context.Context, o Order) error
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Order, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// SetStatus transitions from -> to and fails with ErrInvalidState when
	// the order is not currently in the from status.
	SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

// Stores bundles the transaction-scoped stores a unit of work touches.
type Stores struct {
	Orders   Repo
	Wallet   wallet.Store
	Sequence sequence.Store
}

// TxManager runs fn with stores bound to a single transaction. fn returning
// an error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(st Stores) error) error
}
