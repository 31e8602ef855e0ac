// Package tax computes per-line and aggregate GST breakdowns. GST rates are
// snapshotted onto order lines at pricing time, so the same inputs always
// reproduce the same split regardless of later catalog changes.
package tax

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

// ErrInvalidLineItem is returned when line inputs fail validation.
var ErrInvalidLineItem = errors.New("tax: invalid line item")

// Input carries the raw values for one order line.
type Input struct {
	ProductID string
	HSNCode   string
	UnitPrice money.Money
	Quantity  int
	Discount  money.Money
	GSTRate   money.Rate
}

// Split is a GST amount divided across the CGST/SGST/IGST heads. Exactly one
// of {CGST+SGST} or {IGST} is non-zero for a non-zero tax amount.
type Split struct {
	CGST money.Money `json:"cgst"`
	SGST money.Money `json:"sgst"`
	IGST money.Money `json:"igst"`
}

// Total returns the sum across all three heads.
func (s Split) Total() money.Money {
	return s.CGST.Add(s.SGST).Add(s.IGST)
}

// Line is an order line with its derived tax fields.
type Line struct {
	ProductID string      `json:"productId"`
	HSNCode   string      `json:"hsnCode"`
	UnitPrice money.Money `json:"unitPrice"`
	Quantity  int         `json:"quantity"`
	Discount  money.Money `json:"discount"`
	GSTRate   money.Rate  `json:"gstRate"`
	Gross     money.Money `json:"gross"`
	Taxable   money.Money `json:"taxableAmount"`
	Tax       money.Money `json:"taxAmount"`
	Split     Split       `json:"taxSplit"`
	Total     money.Money `json:"lineTotal"`
}

// InterState reports whether buyer and seller sit in different GST states.
// State codes compare case-insensitively; empty codes count as intra-state.
func InterState(buyerState, sellerState string) bool {
	b := strings.TrimSpace(buyerState)
	s := strings.TrimSpace(sellerState)
	if b == "" || s == "" {
		return false
	}
	return !strings.EqualFold(b, s)
}

// ComputeLine derives taxable amount, tax and the GST split for one line.
//
// taxable = unitPrice*qty - discount, tax = taxable * rate (half-up).
// Intra-state tax splits evenly between CGST and SGST; when the tax amount
// is odd the leftover paisa goes to CGST so the split always reconstructs
// the tax amount exactly.
func ComputeLine(in Input, interState bool) (Line, error) {
	if in.Quantity < 1 {
		return Line{}, fmt.Errorf("%w: quantity %d", ErrInvalidLineItem, in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return Line{}, fmt.Errorf("%w: negative unit price", ErrInvalidLineItem)
	}
	if in.Discount.IsNegative() {
		return Line{}, fmt.Errorf("%w: negative discount", ErrInvalidLineItem)
	}
	gross := in.UnitPrice.MulQty(in.Quantity)
	taxable, err := gross.Sub(in.Discount)
	if err != nil {
		return Line{}, fmt.Errorf("%w: discount %s exceeds gross %s", ErrInvalidLineItem, in.Discount, gross)
	}
	taxAmount := taxable.PercentOf(in.GSTRate)

	var split Split
	if interState {
		split.IGST = taxAmount
	} else {
		// Odd paisa lands on CGST deterministically.
		split.CGST = (taxAmount + 1) / 2
		split.SGST = taxAmount - split.CGST
	}

	return Line{
		ProductID: in.ProductID,
		HSNCode:   in.HSNCode,
		UnitPrice: in.UnitPrice,
		Quantity:  in.Quantity,
		Discount:  in.Discount,
		GSTRate:   in.GSTRate,
		Gross:     gross,
		Taxable:   taxable,
		Tax:       taxAmount,
		Split:     split,
		Total:     taxable.Add(taxAmount),
	}, nil
}

// Totals aggregates already-computed lines. All fields are plain sums, so
// the result is independent of line order.
type Totals struct {
	Subtotal money.Money `json:"subtotal"`
	Discount money.Money `json:"totalDiscount"`
	Taxable  money.Money `json:"taxableAmount"`
	CGST     money.Money `json:"totalCGST"`
	SGST     money.Money `json:"totalSGST"`
	IGST     money.Money `json:"totalIGST"`
	GST      money.Money `json:"totalGST"`
}

// Aggregate sums the derived fields of the provided lines.
func Aggregate(lines []Line) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Gross)
		t.Discount = t.Discount.Add(l.Discount)
		t.Taxable = t.Taxable.Add(l.Taxable)
		t.CGST = t.CGST.Add(l.Split.CGST)
		t.SGST = t.SGST.Add(l.Split.SGST)
		t.IGST = t.IGST.Add(l.Split.IGST)
		t.GST = t.GST.Add(l.Tax)
	}
	return t
}
