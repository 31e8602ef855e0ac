package invoice

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/order"
	"github.com/noah-isme/backend-bazaar/internal/pricing"
	"github.com/noah-isme/backend-bazaar/internal/tax"
)

// Handler exposes invoice generation and retrieval.
type Handler struct {
	Svc *Service
}

type generateRequest struct {
	UserID string `json:"userId"`
}

// Generate issues the invoice for an order, returning the existing one when
// already issued.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	inv, err := h.Svc.Generate(r.Context(), orderID, userID)
	if err != nil {
		writeInvoiceError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, invoiceView(inv))
}

// Get returns an issued invoice.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := uuid.Parse(chi.URLParam(r, "invoiceId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), invoiceID, userID)
	if err != nil {
		writeInvoiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, invoiceView(inv))
}

func writeInvoiceError(w http.ResponseWriter, err error) {
	invoiceAppError(err).Render(w)
}

func invoiceAppError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrOrderCanceled):
		return common.NewAppError("ORDER_CANCELED", "canceled orders cannot be invoiced", http.StatusConflict, err)
	case errors.Is(err, ErrInconsistentTotals):
		return common.NewAppError("INCONSISTENT_TOTALS", "order totals failed verification", http.StatusInternalServerError, err)
	case errors.Is(err, order.ErrForbidden):
		return common.NewAppError("FORBIDDEN", "order belongs to another user", http.StatusForbidden, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, order.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "invoice or order not found", http.StatusNotFound, err)
	default:
		return common.NewAppError("INTERNAL", "invoice operation failed", http.StatusInternalServerError, err)
	}
}

func invoiceView(inv Invoice) map[string]any {
	lines := make([]map[string]any, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		lines = append(lines, lineView(line))
	}
	return map[string]any{
		"id":            inv.ID.String(),
		"invoiceNumber": inv.Number,
		"orderId":       inv.OrderID.String(),
		"orderNumber":   inv.OrderNumber,
		"userId":        inv.UserID.String(),
		"buyerState":    inv.BuyerState,
		"sellerState":   inv.SellerState,
		"issuedAt":      inv.IssuedAt,
		"lines":         lines,
		"totals":        totalsView(inv.Breakdown),
	}
}

func lineView(line tax.Line) map[string]any {
	return map[string]any{
		"productId":     line.ProductID,
		"hsnCode":       line.HSNCode,
		"unitPrice":     line.UnitPrice.String(),
		"quantity":      line.Quantity,
		"discount":      line.Discount.String(),
		"gstRate":       line.GSTRate.String(),
		"taxableAmount": line.Taxable.String(),
		"cgst":          line.Split.CGST.String(),
		"sgst":          line.Split.SGST.String(),
		"igst":          line.Split.IGST.String(),
		"lineTotal":     line.Total.String(),
	}
}

func totalsView(b pricing.Breakdown) map[string]any {
	return map[string]any{
		"subtotal":         b.Subtotal.String(),
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
