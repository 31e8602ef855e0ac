package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/lock"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/obs"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/sequence"
	"github.com/noah-isme/backend-bazaar/internal/tax"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

var (
	// ErrEmptyOrder is returned when creation is requested with no items.
	ErrEmptyOrder = errors.New("order: no items")
	// ErrInvalidQuantity is returned for non-positive item quantities.
	ErrInvalidQuantity = errors.New("order: quantity must be positive")
	// ErrForbidden is returned when the order belongs to another user.
	ErrForbidden = errors.New("order: not owned by user")
)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateInput carries everything order creation needs.
type CreateInput struct {
	UserID       uuid.UUID
	BuyerState   string
	CouponCode   string
	WalletAmount money.Money
	Items        []ItemInput
}

// Service creates, lists and cancels orders. All multi-store mutations run
// through the TxManager; the wallet service template is re-bound to the
// transaction-scoped store per unit of work.
type Service struct {
	Tx          TxManager
	Wallet      *wallet.Service
	Events      *events.Bus
	Lock        *lock.Locker
	SellerState string
	Shipping    pricing.ShippingRule
	NumberWidth int
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create prices and persists an order. Stock is reserved, the coupon counted
// and the wallet debited inside the same transaction as the order insert.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if len(in.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, item := range in.Items {
		if item.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: product %s qty %d", ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
	}
	now := s.now()

	var order Order
	run := func(ctx context.Context) error {
		return s.create(ctx, in, now, &order)
	}
	var err error
	if s.Lock != nil {
		// One in-flight creation per user keeps wallet version conflicts rare.
		err = s.Lock.WithLock(ctx, "order:create:"+in.UserID.String(), 10*time.Second, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		obs.ObserveOrderPriced("error")
		return Order{}, err
	}
	obs.ObserveOrderPriced("ok")
	if s.Events != nil {
		_ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, map[string]any{
			"orderNumber": order.Number,
			"userId":      order.UserID.String(),
			"grandTotal":  order.Pricing.GrandTotal.String(),
		})
	}
	return order, nil
}

func (s *Service) create(ctx context.Context, in CreateInput, now time.Time, order *Order) error {
	return s.Tx.WithinTx(ctx, func(st Stores) error {
		taxInputs := make([]tax.Input, 0, len(in.Items))
		for _, item := range in.Items {
			p, err := st.Orders.GetProduct(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if err := st.Orders.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			taxInputs = append(taxInputs, tax.Input{
				ProductID: p.ID.String(),
				HSNCode:   p.HSNCode,
				UnitPrice: p.Price,
				Quantity:  item.Quantity,
				Discount:  p.Discount.MulQty(item.Quantity),
				GSTRate:   p.GSTRate,
			})
		}

		var coupon *pricing.Coupon
		if in.CouponCode != "" {
			c, err := st.Orders.GetCoupon(ctx, in.CouponCode)
			if err != nil {
				return err
			}
			coupon = &c
		}

		walletSvc := s.Wallet.WithStore(st.Wallet)
		var balance money.Money
		if in.WalletAmount > 0 {
			account, err := walletSvc.Balance(ctx, in.UserID)
			if err != nil {
				return err
			}
			balance = account.Balance
		}

		breakdown, err := pricing.PriceOrder(pricing.Input{
			Items:           taxInputs,
			BuyerState:      in.BuyerState,
			SellerState:     s.SellerState,
			Coupon:          coupon,
			Now:             now,
			Shipping:        s.Shipping,
			WalletRequested: in.WalletAmount,
			WalletBalance:   balance,
		})
		if err != nil {
			return err
		}
		if coupon != nil {
			if err := st.Orders.IncrementCouponUsage(ctx, coupon.Code); err != nil {
				return err
			}
		}

		numberer := sequence.Numberer{Store: st.Sequence, Width: s.NumberWidth}
		number, err := numberer.Next(ctx, sequence.DocOrder, sequence.PeriodKey(now))
		if err != nil {
			return err
		}

		status := StatusPendingPayment
		if breakdown.GrandTotal == 0 {
			status = StatusPaid
		}
		*order = Order{
			ID:          uuid.New(),
			Number:      number,
			UserID:      in.UserID,
			Status:      status,
			BuyerState:  in.BuyerState,
			SellerState: s.SellerState,
			CouponCode:  in.CouponCode,
			Lines:       breakdown.Lines,
			Pricing:     breakdown,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if breakdown.WalletUsed > 0 {
			_, txn, err := walletSvc.Debit(ctx, in.UserID, breakdown.WalletUsed, wallet.Metadata{
				Category:     wallet.CategoryOrderPayment,
				Note:         "order " + number,
				RelatedOrder: &order.ID,
			})
			if err != nil {
				return err
			}
			order.WalletTxn = &txn.ID
		}
		return st.Orders.Insert(ctx, *order)
	})
}

// Get loads the user's order.
func (s *Service) Get(ctx context.Context, orderID, userID uuid.UUID) (Order, error) {
	var order Order
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		o, err := st.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrForbidden
		}
		order = o
		return nil
	})
	return order, err
}

// List returns a page of the user's orders with the total count.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Order, int64, error) {
	var orders []Order
	var total int64
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		var err error
		if total, err = st.Orders.CountForUser(ctx, userID); err != nil {
			return err
		}
		orders, err = st.Orders.ListForUser(ctx, userID, limit, offset)
		return err
	})
	return orders, total, err
}

// Cancel cancels a pending or paid order: the status flips, stock returns,
// and any wallet debit is reversed, all in one transaction.
func (s *Service) Cancel(ctx context.Context, orderID, userID uuid.UUID) (Order, error) {
	var order Order
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		o, err := st.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrForbidden
		}
		if o.Status != StatusPendingPayment && o.Status != StatusPaid {
			return fmt.Errorf("%w: cancel from %s", ErrInvalidState, o.Status)
		}
		if err := st.Orders.SetStatus(ctx, o.ID, o.Status, StatusCanceled); err != nil {
			return err
		}
		for _, line := range o.Lines {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				return fmt.Errorf("order: corrupt line product id: %w", err)
			}
			if err := st.Orders.IncrementStock(ctx, productID, line.Quantity); err != nil {
				return err
			}
		}
		if o.WalletTxn != nil {
			walletSvc := s.Wallet.WithStore(st.Wallet)
			if _, err := walletSvc.Reverse(ctx, *o.WalletTxn, "order "+o.Number+" canceled"); err != nil {
				return err
			}
		}
		o.Status = StatusCanceled
		o.UpdatedAt = s.now()
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if s.Events != nil {
		_ = s.Events.Emit(ctx, events.TopicOrderCanceled, order.ID, map[string]any{
			"orderNumber": order.Number,
			"userId":      order.UserID.String(),
		})
	}
	return order, nil
}
