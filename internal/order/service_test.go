package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

func fixedNow() time.Time {
	return time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *MemRepo, *wallet.Service) {
	t.Helper()
	tx, repo, ws := NewMemTxManager()
	walletSvc := &wallet.Service{Store: ws, MaxRetries: 10, Now: fixedNow}
	svc := &Service{
		Tx:          tx,
		Wallet:      walletSvc,
		SellerState: "KA",
		Shipping:    pricing.ShippingRule{FreeAbove: money.FromRupees(500), FlatFee: money.FromRupees(50)},
		Now:         fixedNow,
	}
	return svc, repo, walletSvc
}

func seedProduct(repo *MemRepo, price money.Money, stock int) uuid.UUID {
	id := uuid.New()
	repo.SeedProduct(Product{
		ID:      id,
		Title:   "Widget",
		HSNCode: "8517",
		Price:   price,
		GSTRate: money.MustRate(1800),
		Stock:   stock,
	})
	return id
}

func TestCreateIntraStateOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(200), 10)
	userID := uuid.New()

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:     userID,
		BuyerState: "KA",
		Items:      []ItemInput{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)

	require.Equal(t, StatusPendingPayment, order.Status)
	require.Equal(t, "2025070001", order.Number)
	require.Equal(t, money.FromRupees(400), order.Pricing.Subtotal)
	require.Equal(t, money.FromRupees(72), order.Pricing.GST)
	require.Equal(t, money.FromRupees(36), order.Pricing.CGST)
	require.Equal(t, money.FromRupees(36), order.Pricing.SGST)
	require.True(t, order.Pricing.IGST.IsZero())
	// 400 taxable is below the 500 free-shipping threshold.
	require.Equal(t, money.FromRupees(50), order.Pricing.Shipping)
	require.Equal(t, money.FromRupees(522), order.Pricing.GrandTotal)
	require.Equal(t, 8, repo.Stock(productID))
}

func TestCreateDebitsWalletAtomically(t *testing.T) {
	svc, repo, walletSvc := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(500), 5)
	userID := uuid.New()
	_, _, err := walletSvc.Credit(context.Background(), userID, money.FromRupees(100), wallet.Metadata{Category: wallet.CategoryTopup})
	require.NoError(t, err)

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:       userID,
		BuyerState:   "KA",
		WalletAmount: money.FromRupees(300),
		Items:        []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	// Requested 300 but only 100 available; the clamp debits 100.
	require.Equal(t, money.FromRupees(100), order.Pricing.WalletUsed)
	require.NotNil(t, order.WalletTxn)

	account, err := walletSvc.Balance(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, account.Balance.IsZero())

	txn, err := walletSvc.Store.GetTransaction(context.Background(), *order.WalletTxn)
	require.NoError(t, err)
	require.Equal(t, wallet.CategoryOrderPayment, txn.Category)
	require.NotNil(t, txn.RelatedOrder)
	require.Equal(t, order.ID, *txn.RelatedOrder)
}

func TestCreateInsufficientStock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(100), 1)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "KA",
		Items:      []ItemInput{{ProductID: productID, Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCreateCountsCouponUsage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(1000), 10)
	repo.SeedCoupon(pricing.Coupon{
		Code:        "SAVE10",
		Kind:        "percent",
		Percent:     money.MustRate(1000),
		MaxDiscount: money.FromRupees(50),
	})

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "MH",
		CouponCode: "SAVE10",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)
	// 10% of 1000 is 100, capped at 50.
	require.Equal(t, money.FromRupees(50), order.Pricing.CouponDiscount)
	// Inter-state buyer, so tax is all IGST.
	require.True(t, order.Pricing.CGST.IsZero())
	require.Equal(t, order.Pricing.GST, order.Pricing.IGST)

	c, err := repo.GetCoupon(context.Background(), "SAVE10")
	require.NoError(t, err)
	require.Equal(t, int32(1), c.UsedCount)
}

func TestIncrementCouponUsageStopsAtLimit(t *testing.T) {
	repo := NewMemRepo()
	limit := int32(1)
	repo.SeedCoupon(pricing.Coupon{Code: "ONCE", Kind: "fixed", Value: money.FromRupees(10), UsageLimit: &limit})

	require.NoError(t, repo.IncrementCouponUsage(context.Background(), "ONCE"))
	err := repo.IncrementCouponUsage(context.Background(), "ONCE")
	require.ErrorIs(t, err, pricing.ErrUsageLimitReached)
	require.ErrorIs(t, err, pricing.ErrCouponInapplicable)

	c, err := repo.GetCoupon(context.Background(), "ONCE")
	require.NoError(t, err)
	require.Equal(t, int32(1), c.UsedCount)
}

func TestCouponUsageLimitBlocksSecondOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(1000), 10)
	limit := int32(1)
	repo.SeedCoupon(pricing.Coupon{Code: "ONCE", Kind: "fixed", Value: money.FromRupees(100), UsageLimit: &limit})

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "KA",
		CouponCode: "ONCE",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "KA",
		CouponCode: "ONCE",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.ErrorIs(t, err, pricing.ErrUsageLimitReached)
}

func TestCreateRejectsExpiredCoupon(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(1000), 10)
	expired := fixedNow().Add(-time.Hour)
	repo.SeedCoupon(pricing.Coupon{Code: "OLD", Kind: "fixed", Value: money.FromRupees(10), ValidTo: &expired})

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "KA",
		CouponCode: "OLD",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.ErrorIs(t, err, pricing.ErrCouponExpired)
}

func TestOrderFullyPaidByWallet(t *testing.T) {
	svc, repo, walletSvc := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(1000), 5)
	userID := uuid.New()
	_, _, err := walletSvc.Credit(context.Background(), userID, money.FromRupees(5000), wallet.Metadata{Category: wallet.CategoryTopup})
	require.NoError(t, err)

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:       userID,
		BuyerState:   "KA",
		WalletAmount: money.FromRupees(5000),
		Items:        []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, order.Status)
	require.True(t, order.Pricing.GrandTotal.IsZero())
	// 1000 + 180 GST, free shipping above 500.
	require.Equal(t, money.FromRupees(1180), order.Pricing.WalletUsed)
}

func TestCancelRestocksAndReversesWallet(t *testing.T) {
	svc, repo, walletSvc := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(1000), 5)
	userID := uuid.New()
	_, _, err := walletSvc.Credit(context.Background(), userID, money.FromRupees(2000), wallet.Metadata{Category: wallet.CategoryTopup})
	require.NoError(t, err)

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:       userID,
		BuyerState:   "KA",
		WalletAmount: money.FromRupees(2000),
		Items:        []ItemInput{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, repo.Stock(productID))

	canceled, err := svc.Cancel(context.Background(), order.ID, userID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Equal(t, 5, repo.Stock(productID))

	account, err := walletSvc.Balance(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, money.FromRupees(2000), account.Balance)

	// The original debit is now reversed and cannot be reversed again.
	_, err = walletSvc.Reverse(context.Background(), *order.WalletTxn, "again")
	require.ErrorIs(t, err, wallet.ErrAlreadyReversed)
}

func TestCancelTwiceFails(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(100), 5)
	userID := uuid.New()

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:     userID,
		BuyerState: "KA",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), order.ID, userID)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), order.ID, userID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelForeignOrderForbidden(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(100), 5)

	order, err := svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "KA",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), order.ID, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListForUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	productID := seedProduct(repo, money.FromRupees(100), 50)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateInput{
			UserID:     userID,
			BuyerState: "KA",
			Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
		})
		require.NoError(t, err)
	}
	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     uuid.New(),
		BuyerState: "KA",
		Items:      []ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	orders, total, err := svc.List(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, orders, 3)
}
