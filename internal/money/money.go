// Package money provides exact fixed-point arithmetic for INR amounts.
// Every amount is an integer count of paise; binary floats never appear.
// Decimal strings are parsed and rendered only at I/O boundaries.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeResult is returned when a subtraction would produce a negative amount.
	ErrNegativeResult = errors.New("money: negative result")
	// ErrInvalidAmount is returned for amounts that cannot be represented in whole paise.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrInvalidRate is returned for rates outside 0-100% or with more precision than basis points.
	ErrInvalidRate = errors.New("money: invalid rate")
)

// Money is an amount of Indian rupees in paise.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromPaise wraps an integer number of paise.
func FromPaise(v int64) Money { return Money(v) }

// FromRupees converts whole rupees to Money.
func FromRupees(v int64) Money { return Money(v * 100) }

// Parse converts a decimal rupee string ("1234.50") to Money. Amounts with
// sub-paisa precision are rejected rather than rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	paise := d.Shift(2)
	if !paise.IsInteger() {
		return 0, fmt.Errorf("%w: %q has sub-paisa precision", ErrInvalidAmount, s)
	}
	return Money(paise.IntPart()), nil
}

// Paise returns the raw paise count.
func (m Money) Paise() int64 { return int64(m) }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Add returns m + o. Paise addition is exact.
func (m Money) Add(o Money) Money { return m + o }

// Sub returns m - o, failing with ErrNegativeResult when o exceeds m.
func (m Money) Sub(o Money) (Money, error) {
	if o > m {
		return 0, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m, o)
	}
	return m - o, nil
}

// MulQty multiplies the amount by an integer quantity.
func (m Money) MulQty(qty int) Money { return m * Money(qty) }

// PercentOf applies the rate to the amount, rounding the fractional paisa
// half-up. The computation stays in integers so repeated application of the
// same inputs always yields the same result.
func (m Money) PercentOf(r Rate) Money {
	if m <= 0 || r.bps == 0 {
		return 0
	}
	return Money((int64(m)*r.bps + 5000) / 10000)
}

// Min returns the smaller of the two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// String renders the amount as a decimal rupee string with two places.
func (m Money) String() string {
	return decimal.New(int64(m), -2).StringFixed(2)
}

// Rate is a percentage with basis-point resolution (0.01%). GST rates such
// as 0.25% or 18% are representable exactly; anything finer is rejected at
// construction.
type Rate struct {
	bps int64
}

// RateFromBasisPoints builds a Rate from hundredths of a percent.
func RateFromBasisPoints(bps int64) (Rate, error) {
	if bps < 0 || bps > 10000 {
		return Rate{}, fmt.Errorf("%w: %d bps", ErrInvalidRate, bps)
	}
	return Rate{bps: bps}, nil
}

// MustRate is RateFromBasisPoints for compile-time constants; it panics on
// invalid input and is intended for tests and configuration defaults.
func MustRate(bps int64) Rate {
	r, err := RateFromBasisPoints(bps)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRate converts a decimal percentage string ("18", "0.25") to a Rate.
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	bps := d.Shift(2)
	if !bps.IsInteger() {
		return Rate{}, fmt.Errorf("%w: %q finer than basis points", ErrInvalidRate, s)
	}
	return RateFromBasisPoints(bps.IntPart())
}

// BasisPoints returns the rate in hundredths of a percent.
func (r Rate) BasisPoints() int64 { return r.bps }

// IsZero reports whether the rate is zero.
func (r Rate) IsZero() bool { return r.bps == 0 }

// String renders the rate as a percentage string.
func (r Rate) String() string {
	return decimal.New(r.bps, -2).String() + "%"
}
