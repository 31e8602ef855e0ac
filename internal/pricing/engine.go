// Package pricing combines line-level GST computation, coupon discounts,
// shipping rules and wallet offsets into one internally consistent order
// breakdown. Pricing is pure: the same input always produces the same
// breakdown, and nothing here mutates wallet or inventory state.
package pricing

import (
	"errors"
	"time"

	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/tax"
)

// ErrEmptyOrder is returned when pricing is requested for zero line items.
var ErrEmptyOrder = errors.New("pricing: empty order")

// ShippingRule charges a flat fee below a free-shipping threshold.
type ShippingRule struct {
	FreeAbove money.Money
	FlatFee   money.Money
}

// Charge returns the shipping cost for the post-discount taxable amount.
func (r ShippingRule) Charge(taxable money.Money) money.Money {
	if r.FreeAbove > 0 && taxable >= r.FreeAbove {
		return 0
	}
	return r.FlatFee
}

// Breakdown is the order-level pricing aggregate. It is constructed once by
// PriceOrder and persisted immutably alongside the order.
type Breakdown struct {
	Lines          []tax.Line  `json:"lines"`
	Subtotal       money.Money `json:"subtotal"`
	LineDiscount   money.Money `json:"lineDiscount"`
	CouponDiscount money.Money `json:"couponDiscount"`
	TotalDiscount  money.Money `json:"totalDiscount"`
	Taxable        money.Money `json:"taxableAmount"`
	CGST           money.Money `json:"totalCGST"`
	SGST           money.Money `json:"totalSGST"`
	IGST           money.Money `json:"totalIGST"`
	GST            money.Money `json:"totalGST"`
	Shipping       money.Money `json:"shippingCharges"`
	WalletUsed     money.Money `json:"walletAmountUsed"`
	RoundOff       money.Money `json:"roundOff"`
	GrandTotal     money.Money `json:"grandTotal"`
}

// Input carries everything PriceOrder needs. Now is explicit so coupon
// expiry is the caller's clock, not a hidden dependency.
type Input struct {
	Items           []tax.Input
	BuyerState      string
	SellerState     string
	Coupon          *Coupon
	Now             time.Time
	Shipping        ShippingRule
	WalletRequested money.Money
	WalletBalance   money.Money
}

// PriceOrder runs every item through the tax engine, applies the coupon,
// shipping rule and wallet offset, and returns the final breakdown.
//
// The wallet amount reduces the payable total, never the taxable amount,
// and PriceOrder only reports how much to debit; the caller performs the
// actual ledger debit atomically with order persistence.
func PriceOrder(in Input) (Breakdown, error) {
	if len(in.Items) == 0 {
		return Breakdown{}, ErrEmptyOrder
	}
	interState := tax.InterState(in.BuyerState, in.SellerState)
	lines := make([]tax.Line, 0, len(in.Items))
	for _, item := range in.Items {
		line, err := tax.ComputeLine(item, interState)
		if err != nil {
			return Breakdown{}, err
		}
		lines = append(lines, line)
	}
	totals := tax.Aggregate(lines)

	var couponDiscount money.Money
	if in.Coupon != nil {
		if err := in.Coupon.Validate(in.Now, totals.Taxable); err != nil {
			return Breakdown{}, err
		}
		couponDiscount = in.Coupon.Discount(totals.Taxable)
	}
	taxable := totals.Taxable - couponDiscount

	shipping := in.Shipping.Charge(taxable)

	// roundOff stays zero: no reporting convention is defined for INR here.
	payable := taxable.Add(totals.GST).Add(shipping)

	var walletUsed money.Money
	if in.WalletRequested > 0 {
		walletUsed = money.Min(in.WalletRequested, money.Min(in.WalletBalance, payable))
	}

	return Breakdown{
		Lines:          lines,
		Subtotal:       totals.Subtotal,
		LineDiscount:   totals.Discount,
		CouponDiscount: couponDiscount,
		TotalDiscount:  totals.Discount.Add(couponDiscount),
		Taxable:        taxable,
		CGST:           totals.CGST,
		SGST:           totals.SGST,
		IGST:           totals.IGST,
		GST:            totals.GST,
		Shipping:       shipping,
		WalletUsed:     walletUsed,
		RoundOff:       0,
		GrandTotal:     payable - walletUsed,
	}, nil
}

// Recompute rebuilds a breakdown from already-derived lines plus the
// persisted coupon discount, shipping and wallet figures. Invoice and report
// generation use this to re-derive totals from snapshotted order lines; the
// result must match the originally persisted breakdown exactly.
func Recompute(lines []tax.Line, couponDiscount, shipping, walletUsed money.Money) Breakdown {
	totals := tax.Aggregate(lines)
	taxable := totals.Taxable - couponDiscount
	payable := taxable.Add(totals.GST).Add(shipping)
	return Breakdown{
		Lines:          lines,
		Subtotal:       totals.Subtotal,
		LineDiscount:   totals.Discount,
		CouponDiscount: couponDiscount,
		TotalDiscount:  totals.Discount.Add(couponDiscount),
		Taxable:        taxable,
		CGST:           totals.CGST,
		SGST:           totals.SGST,
		IGST:           totals.IGST,
		GST:            totals.GST,
		Shipping:       shipping,
		WalletUsed:     walletUsed,
		RoundOff:       0,
		GrandTotal:     payable - walletUsed,
	}
}
