package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/tax"
)

func item(unitPaise int64, qty int, rateBps int64) tax.Input {
	return tax.Input{
		UnitPrice: money.FromPaise(unitPaise),
		Quantity:  qty,
		GSTRate:   money.MustRate(rateBps),
	}
}

func TestPriceOrderEmpty(t *testing.T) {
	if _, err := PriceOrder(Input{}); !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestPriceOrderIntraState(t *testing.T) {
	b, err := PriceOrder(Input{
		Items:       []tax.Input{item(100000, 2, 1800)},
		BuyerState:  "MH",
		SellerState: "MH",
		Shipping:    ShippingRule{FreeAbove: money.FromRupees(5000), FlatFee: money.FromRupees(50)},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.Taxable != 200000 || b.GST != 36000 || b.CGST != 18000 || b.SGST != 18000 {
		t.Fatalf("unexpected totals %+v", b)
	}
	if b.Shipping != 5000 {
		t.Fatalf("expected flat shipping 5000, got %d", b.Shipping)
	}
	if b.GrandTotal != 200000+36000+5000 {
		t.Fatalf("unexpected grand total %d", b.GrandTotal)
	}
}

func TestPriceOrderPercentCouponCapped(t *testing.T) {
	coupon := &Coupon{
		Code:        "SAVE10",
		Kind:        "percent",
		Percent:     money.MustRate(1000),
		MaxDiscount: money.FromRupees(500),
	}
	b, err := PriceOrder(Input{
		Items:  []tax.Input{item(1000000, 1, 0)}, // taxable 10000.00
		Coupon: coupon,
		Now:    time.Now(),
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.CouponDiscount != money.FromRupees(500) {
		t.Fatalf("expected capped discount 50000, got %d", b.CouponDiscount)
	}
	if b.Taxable != 1000000-50000 {
		t.Fatalf("coupon must reduce taxable, got %d", b.Taxable)
	}
}

func TestPriceOrderFixedCouponCappedAtTaxable(t *testing.T) {
	coupon := &Coupon{Code: "FLAT", Kind: "fixed", Value: money.FromRupees(200)}
	b, err := PriceOrder(Input{
		Items:  []tax.Input{item(5000, 1, 0)}, // taxable 50.00
		Coupon: coupon,
		Now:    time.Now(),
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.CouponDiscount != 5000 || b.Taxable != 0 {
		t.Fatalf("fixed coupon must cap at taxable: %+v", b)
	}
}

func TestCouponValidation(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	limit := int32(5)
	cases := []struct {
		name   string
		coupon Coupon
		want   error
	}{
		{"expired", Coupon{ValidTo: &past}, ErrCouponExpired},
		{"inactive", Coupon{ValidFrom: &future}, ErrCouponInactive},
		{"min order", Coupon{MinOrder: money.FromRupees(100)}, ErrMinimumOrderUnmet},
		{"usage", Coupon{UsageLimit: &limit, UsedCount: 5}, ErrUsageLimitReached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PriceOrder(Input{
				Items:  []tax.Input{item(1000, 1, 0)},
				Coupon: &tc.coupon,
				Now:    time.Now(),
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrCouponInapplicable) {
				t.Fatalf("coupon errors must match ErrCouponInapplicable, got %v", err)
			}
		})
	}
}

func TestWalletClamp(t *testing.T) {
	in := Input{
		Items:           []tax.Input{item(100000, 1, 1800)}, // payable 1180.00
		WalletRequested: money.FromRupees(5000),
		WalletBalance:   money.FromRupees(2000),
	}
	b, err := PriceOrder(in)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.WalletUsed != 118000 {
		t.Fatalf("wallet must clamp to payable, got %d", b.WalletUsed)
	}
	if b.GrandTotal != 0 {
		t.Fatalf("expected zero grand total, got %d", b.GrandTotal)
	}

	in.WalletBalance = money.FromRupees(100)
	b, err = PriceOrder(in)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.WalletUsed != 10000 {
		t.Fatalf("wallet must clamp to balance, got %d", b.WalletUsed)
	}
	if b.GrandTotal != 118000-10000 {
		t.Fatalf("unexpected grand total %d", b.GrandTotal)
	}
}

func TestFreeShippingThreshold(t *testing.T) {
	rule := ShippingRule{FreeAbove: money.FromRupees(1000), FlatFee: money.FromRupees(50)}
	if c := rule.Charge(money.FromRupees(1000)); c != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", c)
	}
	if c := rule.Charge(money.FromRupees(999)); c != money.FromRupees(50) {
		t.Fatalf("expected flat fee below threshold, got %d", c)
	}
}

func TestPriceOrderDeterministic(t *testing.T) {
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	in := Input{
		Items:           []tax.Input{item(99900, 3, 1800), item(4999, 1, 500)},
		BuyerState:      "KA",
		SellerState:     "MH",
		Coupon:          &Coupon{Kind: "percent", Percent: money.MustRate(500)},
		Now:             now,
		Shipping:        ShippingRule{FlatFee: money.FromRupees(40)},
		WalletRequested: money.FromRupees(100),
		WalletBalance:   money.FromRupees(100),
	}
	first, err := PriceOrder(in)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := PriceOrder(in)
		if err != nil {
			t.Fatalf("price: %v", err)
		}
		if again.GrandTotal != first.GrandTotal || again.GST != first.GST || again.WalletUsed != first.WalletUsed {
			t.Fatalf("pricing not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestRecomputeMatchesPriceOrder(t *testing.T) {
	in := Input{
		Items:       []tax.Input{item(100000, 2, 1800), item(25, 1, 1800)},
		BuyerState:  "MH",
		SellerState: "MH",
		Coupon:      &Coupon{Kind: "fixed", Value: money.FromRupees(10)},
		Now:         time.Now(),
		Shipping:    ShippingRule{FlatFee: money.FromRupees(50)},
	}
	original, err := PriceOrder(in)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	rederived := Recompute(original.Lines, original.CouponDiscount, original.Shipping, original.WalletUsed)
	if rederived.GrandTotal != original.GrandTotal ||
		rederived.Taxable != original.Taxable ||
		rederived.GST != original.GST ||
		rederived.TotalDiscount != original.TotalDiscount {
		t.Fatalf("recompute drifted: %+v vs %+v", rederived, original)
	}
}
