// Package invoice issues GST invoices for orders. An invoice never stores
// derived totals of its own: it re-derives the breakdown from the order's
// persisted line snapshots and refuses to issue when the result disagrees
// with the order's stored totals.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/obs"
	"github.com/noah-isme/backend-bazaar/internal/order"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/sequence"
	"github.com/noah-isme/backend-bazaar/internal/tax"
)

var (
	// ErrNotFound is returned when the invoice is absent.
	ErrNotFound = errors.New("invoice: not found")
	// ErrOrderCanceled is returned when invoicing a canceled order.
	ErrOrderCanceled = errors.New("invoice: order is canceled")
	// ErrInconsistentTotals means the breakdown re-derived from the order's
	// line snapshots no longer matches the stored totals. This indicates
	// corrupted order data and must never issue an invoice.
	ErrInconsistentTotals = errors.New("invoice: recomputed totals disagree with order")
)

// Header is the persisted part of an invoice; everything else is re-derived
// from the referenced order at read time.
type Header struct {
	ID       uuid.UUID
	Number   string
	OrderID  uuid.UUID
	UserID   uuid.UUID
	IssuedAt time.Time
}

// Invoice is a fully hydrated invoice view.
type Invoice struct {
	Header
	OrderNumber string
	BuyerState  string
	SellerState string
	Lines       []tax.Line
	Breakdown   pricing.Breakdown
}

// Repo persists invoice headers. Insert must reject a second header for the
// same order so concurrent generation converges on one invoice.
type Repo interface {
	Insert(ctx context.Context, h Header) error
	Get(ctx context.Context, id uuid.UUID) (Header, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (Header, error)
}

// OrderSource loads the order being invoiced, enforcing ownership.
type OrderSource interface {
	Get(ctx context.Context, orderID, userID uuid.UUID) (order.Order, error)
}

// Service generates and serves invoices.
type Service struct {
	Repo     Repo
	Orders   OrderSource
	Numberer sequence.Numberer
	Events   *events.Bus
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Generate issues the invoice for an order, or returns the existing one.
// Generation is idempotent per order.
func (s *Service) Generate(ctx context.Context, orderID, userID uuid.UUID) (Invoice, error) {
	o, err := s.Orders.Get(ctx, orderID, userID)
	if err != nil {
		return Invoice{}, err
	}
	if h, err := s.Repo.GetByOrder(ctx, orderID); err == nil {
		return s.hydrate(h, o)
	} else if !errors.Is(err, ErrNotFound) {
		return Invoice{}, err
	}
	if o.Status == order.StatusCanceled {
		return Invoice{}, ErrOrderCanceled
	}
	if err := verifyTotals(o); err != nil {
		return Invoice{}, err
	}

	now := s.now()
	number, err := s.Numberer.Next(ctx, sequence.DocInvoice, sequence.PeriodKey(now))
	if err != nil {
		return Invoice{}, err
	}
	h := Header{
		ID:       uuid.New(),
		Number:   number,
		OrderID:  o.ID,
		UserID:   userID,
		IssuedAt: now,
	}
	if err := s.Repo.Insert(ctx, h); err != nil {
		// A concurrent request may have won the unique-order race.
		if existing, lookupErr := s.Repo.GetByOrder(ctx, orderID); lookupErr == nil {
			return s.hydrate(existing, o)
		}
		return Invoice{}, fmt.Errorf("invoice: persist: %w", err)
	}
	obs.ObserveInvoiceGenerated()
	if s.Events != nil {
		_ = s.Events.Emit(ctx, events.TopicInvoiceGenerated, h.OrderID, map[string]any{
			"invoiceNumber": h.Number,
			"orderNumber":   o.Number,
		})
	}
	return s.hydrate(h, o)
}

// Get loads an invoice by id for the owning user.
func (s *Service) Get(ctx context.Context, invoiceID, userID uuid.UUID) (Invoice, error) {
	h, err := s.Repo.Get(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	o, err := s.Orders.Get(ctx, h.OrderID, userID)
	if err != nil {
		return Invoice{}, err
	}
	return s.hydrate(h, o)
}

func (s *Service) hydrate(h Header, o order.Order) (Invoice, error) {
	if err := verifyTotals(o); err != nil {
		return Invoice{}, err
	}
	return Invoice{
		Header:      h,
		OrderNumber: o.Number,
		BuyerState:  o.BuyerState,
		SellerState: o.SellerState,
		Lines:       o.Lines,
		Breakdown:   o.Pricing,
	}, nil
}

// verifyTotals re-derives the breakdown from the line snapshots and compares
// it field by field with the order's stored breakdown.
func verifyTotals(o order.Order) error {
	recomputed := pricing.Recompute(o.Lines, o.Pricing.CouponDiscount, o.Pricing.Shipping, o.Pricing.WalletUsed)
	stored := o.Pricing
	switch {
	case recomputed.Subtotal != stored.Subtotal,
		recomputed.TotalDiscount != stored.TotalDiscount,
		recomputed.Taxable != stored.Taxable,
		recomputed.CGST != stored.CGST,
		recomputed.SGST != stored.SGST,
		recomputed.IGST != stored.IGST,
		recomputed.GST != stored.GST,
		recomputed.GrandTotal != stored.GrandTotal:
		return fmt.Errorf("%w: order %s", ErrInconsistentTotals, o.ID)
	}
	return nil
}
