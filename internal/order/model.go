// Package order creates and manages orders. Creation bundles stock
// decrement, pricing, order persistence and the wallet debit into one unit
// of work, so a failure anywhere leaves no partial state behind.
package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/tax"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCanceled       Status = "CANCELED"
)

// Product is the catalog snapshot pricing needs: price, per-unit discount,
// HSN code and the GST rate in force at order time.
type Product struct {
	ID       uuid.UUID
	Title    string
	HSNCode  string
	Price    money.Money
	Discount money.Money
	GSTRate  money.Rate
	Stock    int
}

// Order is a priced order with its line snapshots. The tax fields on each
// line are derived once at creation and never recomputed against the live
// catalog.
type Order struct {
	ID          uuid.UUID
	Number      string
	UserID      uuid.UUID
	Status      Status
	BuyerState  string
	SellerState string
	CouponCode  string
	Lines       []tax.Line
	Pricing     pricing.Breakdown
	WalletTxn   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
