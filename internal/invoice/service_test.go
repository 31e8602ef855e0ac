package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/order"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/sequence"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

func fixedNow() time.Time {
	return time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) (*Service, *order.Service, *order.MemRepo) {
	t.Helper()
	tx, repo, ws := order.NewMemTxManager()
	orderSvc := &order.Service{
		Tx:          tx,
		Wallet:      &wallet.Service{Store: ws, Now: fixedNow},
		SellerState: "KA",
		Shipping:    pricing.ShippingRule{FreeAbove: money.FromRupees(500), FlatFee: money.FromRupees(50)},
		Now:         fixedNow,
	}
	svc := &Service{
		Repo:     NewMemRepo(),
		Orders:   orderSvc,
		Numberer: sequence.Numberer{Store: sequence.NewMemStore()},
		Now:      fixedNow,
	}
	return svc, orderSvc, repo
}

func createOrder(t *testing.T, orderSvc *order.Service, repo *order.MemRepo, userID uuid.UUID) order.Order {
	t.Helper()
	productID := uuid.New()
	repo.SeedProduct(order.Product{
		ID:      productID,
		Title:   "Widget",
		HSNCode: "8517",
		Price:   money.FromRupees(1000),
		GSTRate: money.MustRate(1800),
		Stock:   10,
	})
	o, err := orderSvc.Create(context.Background(), order.CreateInput{
		UserID:     userID,
		BuyerState: "MH",
		Items:      []order.ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

func TestGenerateInvoice(t *testing.T) {
	svc, orderSvc, repo := newFixture(t)
	userID := uuid.New()
	o := createOrder(t, orderSvc, repo, userID)

	inv, err := svc.Generate(context.Background(), o.ID, userID)
	require.NoError(t, err)

	require.Equal(t, "2025070001", inv.Number)
	require.Equal(t, o.ID, inv.OrderID)
	require.Equal(t, o.Number, inv.OrderNumber)
	require.Len(t, inv.Lines, 1)
	// Inter-state order: the invoice shows IGST only.
	require.Equal(t, money.FromRupees(180), inv.Breakdown.IGST)
	require.True(t, inv.Breakdown.CGST.IsZero())
	require.Equal(t, money.FromRupees(1180), inv.Breakdown.GrandTotal)
}

func TestGenerateIsIdempotent(t *testing.T) {
	svc, orderSvc, repo := newFixture(t)
	userID := uuid.New()
	o := createOrder(t, orderSvc, repo, userID)

	first, err := svc.Generate(context.Background(), o.ID, userID)
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), o.ID, userID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Number, second.Number)
}

func TestGenerateRejectsCanceledOrder(t *testing.T) {
	svc, orderSvc, repo := newFixture(t)
	userID := uuid.New()
	o := createOrder(t, orderSvc, repo, userID)
	_, err := orderSvc.Cancel(context.Background(), o.ID, userID)
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), o.ID, userID)
	require.ErrorIs(t, err, ErrOrderCanceled)
}

func TestGenerateRejectsForeignOrder(t *testing.T) {
	svc, orderSvc, repo := newFixture(t)
	o := createOrder(t, orderSvc, repo, uuid.New())

	_, err := svc.Generate(context.Background(), o.ID, uuid.New())
	require.ErrorIs(t, err, order.ErrForbidden)
}

// tamperedSource corrupts a stored total on the way out, simulating order
// data damaged after creation.
type tamperedSource struct {
	inner OrderSource
}

func (s tamperedSource) Get(ctx context.Context, orderID, userID uuid.UUID) (order.Order, error) {
	o, err := s.inner.Get(ctx, orderID, userID)
	if err != nil {
		return order.Order{}, err
	}
	o.Pricing.GrandTotal = o.Pricing.GrandTotal.Add(money.FromPaise(1))
	return o, nil
}

func TestGenerateRejectsInconsistentTotals(t *testing.T) {
	svc, orderSvc, repo := newFixture(t)
	userID := uuid.New()
	o := createOrder(t, orderSvc, repo, userID)
	svc.Orders = tamperedSource{inner: orderSvc}

	_, err := svc.Generate(context.Background(), o.ID, userID)
	require.ErrorIs(t, err, ErrInconsistentTotals)
}

func TestGetInvoice(t *testing.T) {
	svc, orderSvc, repo := newFixture(t)
	userID := uuid.New()
	o := createOrder(t, orderSvc, repo, userID)

	generated, err := svc.Generate(context.Background(), o.ID, userID)
	require.NoError(t, err)

	loaded, err := svc.Get(context.Background(), generated.ID, userID)
	require.NoError(t, err)
	require.Equal(t, generated.Number, loaded.Number)
	require.Equal(t, generated.Breakdown.GrandTotal, loaded.Breakdown.GrandTotal)

	_, err = svc.Get(context.Background(), uuid.New(), userID)
	require.ErrorIs(t, err, ErrNotFound)
}
