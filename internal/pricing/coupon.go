package pricing

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

var (
	// ErrCouponInapplicable is the umbrella error for coupon rejections; the
	// specific sentinels below all wrap it so callers can match either way.
	ErrCouponInapplicable = errors.New("pricing: coupon inapplicable")
	// ErrCouponInactive is returned when the coupon window has not opened yet.
	ErrCouponInactive = errors.New("pricing: coupon not active")
	// ErrCouponExpired is returned when the coupon window has closed.
	ErrCouponExpired = errors.New("pricing: coupon expired")
	// ErrMinimumOrderUnmet indicates the order total did not reach the coupon floor.
	ErrMinimumOrderUnmet = errors.New("pricing: coupon minimum order amount not met")
	// ErrUsageLimitReached indicates the coupon quota is exhausted.
	ErrUsageLimitReached = errors.New("pricing: coupon usage limit reached")
)

// Coupon captures the runtime constraints of a discount code. Percentage
// coupons carry a Rate and optional cap; fixed coupons carry a flat value.
type Coupon struct {
	Code        string
	Kind        string // "percent" or "fixed"
	Value       money.Money
	Percent     money.Rate
	MaxDiscount money.Money // zero means uncapped
	MinOrder    money.Money
	UsageLimit  *int32
	UsedCount   int32
	ValidFrom   *time.Time
	ValidTo     *time.Time
}

// Validate ensures the coupon can be applied at the provided instant and
// order taxable amount. Expiry is an explicit input-derived check so pricing
// stays reproducible.
func (c Coupon) Validate(now time.Time, taxable money.Money) error {
	if taxable < c.MinOrder {
		return errors.Join(ErrCouponInapplicable, ErrMinimumOrderUnmet)
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return errors.Join(ErrCouponInapplicable, ErrCouponInactive)
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return errors.Join(ErrCouponInapplicable, ErrCouponExpired)
	}
	if c.UsageLimit != nil && *c.UsageLimit >= 0 && c.UsedCount >= *c.UsageLimit {
		return errors.Join(ErrCouponInapplicable, ErrUsageLimitReached)
	}
	return nil
}

// Discount computes the coupon discount for the given taxable amount.
// Percentage discounts are capped at MaxDiscount when set; every discount is
// capped at the taxable amount itself.
func (c Coupon) Discount(taxable money.Money) money.Money {
	if taxable <= 0 {
		return 0
	}
	discount := c.Value
	if strings.EqualFold(c.Kind, "percent") {
		discount = taxable.PercentOf(c.Percent)
		if c.MaxDiscount > 0 {
			discount = money.Min(discount, c.MaxDiscount)
		}
	}
	return money.Min(discount, taxable)
}
