package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/tax"
	"github.com/noah-isme/backend-bazaar/internal/wallet"
)

// Handler exposes the order HTTP surface.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createRequest struct {
	UserID       string              `json:"userId" validate:"required,uuid4"`
	BuyerState   string              `json:"buyerState"`
	CouponCode   string              `json:"couponCode"`
	WalletAmount string              `json:"walletAmount"`
	Items        []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Create prices and persists a new order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order payload", map[string]any{"error": err.Error()})
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order payload", map[string]any{"error": err.Error()})
			return
		}
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var walletAmount money.Money
	if req.WalletAmount != "" {
		walletAmount, err = money.Parse(req.WalletAmount)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid wallet amount", nil)
			return
		}
	}
	in := CreateInput{
		UserID:       userID,
		BuyerState:   req.BuyerState,
		CouponCode:   req.CouponCode,
		WalletAmount: walletAmount,
	}
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
			return
		}
		in.Items = append(in.Items, ItemInput{ProductID: productID, Quantity: item.Quantity})
	}
	order, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, orderView(order))
}

// Get returns one order with its full pricing breakdown.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	order, err := h.Svc.Get(r.Context(), orderID, userID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, orderView(order))
}

// List returns a page of the user's orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	orders, total, err := h.Svc.List(r.Context(), userID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

type cancelRequest struct {
	UserID string `json:"userId" validate:"required,uuid4"`
}

// Cancel cancels a pending or paid order, restocking items and reversing
// any wallet debit.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cancel payload", nil)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	order, err := h.Svc.Cancel(r.Context(), orderID, userID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, orderView(order))
}

func writeOrderError(w http.ResponseWriter, err error) {
	orderAppError(err).Render(w)
}

func orderAppError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidQuantity), errors.Is(err, tax.ErrInvalidLineItem):
		e := common.NewAppError("INVALID_LINE_ITEM", "invalid order items", http.StatusBadRequest, err)
		e.Details = map[string]any{"error": err.Error()}
		return e
	case errors.Is(err, pricing.ErrCouponInapplicable):
		e := common.NewAppError("COUPON_INAPPLICABLE", "coupon cannot be applied", http.StatusUnprocessableEntity, err)
		e.Details = map[string]any{"error": err.Error()}
		return e
	case errors.Is(err, ErrInsufficientStock):
		return common.NewAppError("INSUFFICIENT_STOCK", "not enough stock", http.StatusConflict, err)
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return common.NewAppError("INSUFFICIENT_BALANCE", "wallet balance is insufficient", http.StatusUnprocessableEntity, err)
	case errors.Is(err, wallet.ErrWalletBlocked):
		return common.NewAppError("WALLET_BLOCKED", "wallet is blocked", http.StatusForbidden, err)
	case errors.Is(err, wallet.ErrConcurrencyExhausted):
		return common.NewAppError("CONFLICT_RETRY", "wallet busy, retry later", http.StatusServiceUnavailable, err)
	case errors.Is(err, ErrInvalidState):
		return common.NewAppError("INVALID_STATE", "order state does not allow this operation", http.StatusConflict, err)
	case errors.Is(err, ErrForbidden):
		return common.NewAppError("FORBIDDEN", "order belongs to another user", http.StatusForbidden, err)
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "order, product or coupon not found", http.StatusNotFound, err)
	default:
		return common.NewAppError("INTERNAL", "order operation failed", http.StatusInternalServerError, err)
	}
}

func orderView(o Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, map[string]any{
			"productId":     line.ProductID,
			"hsnCode":       line.HSNCode,
			"unitPrice":     line.UnitPrice.String(),
			"quantity":      line.Quantity,
			"discount":      line.Discount.String(),
			"gstRate":       line.GSTRate.String(),
			"taxableAmount": line.Taxable.String(),
			"taxAmount":     line.Tax.String(),
			"cgst":          line.Split.CGST.String(),
			"sgst":          line.Split.SGST.String(),
			"igst":          line.Split.IGST.String(),
			"lineTotal":     line.Total.String(),
		})
	}
	view := map[string]any{
		"id":          o.ID.String(),
		"orderNumber": o.Number,
		"userId":      o.UserID.String(),
		"status":      o.Status,
		"buyerState":  o.BuyerState,
		"sellerState": o.SellerState,
		"items":       items,
		"pricing":     breakdownView(o.Pricing),
		"createdAt":   o.CreatedAt,
		"updatedAt":   o.UpdatedAt,
	}
	if o.CouponCode != "" {
		view["couponCode"] = o.CouponCode
	}
	if o.WalletTxn != nil {
		view["walletTransaction"] = o.WalletTxn.String()
	}
	return view
}

func breakdownView(b pricing.Breakdown) map[string]any {
	return map[string]any{
		"subtotal":         b.Subtotal.String(),
		"lineDiscount":     b.LineDiscount.String(),
		"couponDiscount":   b.CouponDiscount.String(),
		"totalDiscount":    b.TotalDiscount.String(),
		"taxableAmount":    b.Taxable.String(),
		"totalCGST":        b.CGST.String(),
		"totalSGST":        b.SGST.String(),
		"totalIGST":        b.IGST.String(),
		"totalGST":         b.GST.String(),
		"shippingCharges":  b.Shipping.String(),
		"walletAmountUsed": b.WalletUsed.String(),
		"roundOff":         b.RoundOff.String(),
		"grandTotal":       b.GrandTotal.String(),
	}
}
