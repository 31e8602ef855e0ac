package wallet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/money"
)

// Handler exposes the wallet HTTP surface: balance, history, top-up, debit
// and admin reversal.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Events   *events.Bus
}

type mutateRequest struct {
	UserID       string  `json:"userId" validate:"required,uuid4"`
	Amount       string  `json:"amount" validate:"required"`
	Note         string  `json:"note"`
	RelatedOrder *string `json:"relatedOrder" validate:"omitempty,uuid4"`
}

func (h *Handler) decodeMutate(r *http.Request) (uuid.UUID, money.Money, Metadata, error) {
	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, 0, Metadata{}, err
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			return uuid.Nil, 0, Metadata{}, err
		}
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return uuid.Nil, 0, Metadata{}, err
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return uuid.Nil, 0, Metadata{}, err
	}
	meta := Metadata{Note: req.Note}
	if req.RelatedOrder != nil {
		orderID, err := uuid.Parse(*req.RelatedOrder)
		if err != nil {
			return uuid.Nil, 0, Metadata{}, err
		}
		meta.RelatedOrder = &orderID
	}
	return userID, amount, meta, nil
}

// Topup credits the user's wallet.
func (h *Handler) Topup(w http.ResponseWriter, r *http.Request) {
	userID, amount, meta, err := h.decodeMutate(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid topup payload", map[string]any{"error": err.Error()})
		return
	}
	meta.Category = CategoryTopup
	account, txn, err := h.Svc.Credit(r.Context(), userID, amount, meta)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]any{
		"wallet":      accountView(account),
		"transaction": transactionView(txn),
	})
}

// Debit removes funds from the user's wallet for payment flows.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	userID, amount, meta, err := h.decodeMutate(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid debit payload", map[string]any{"error": err.Error()})
		return
	}
	meta.Category = CategoryOrderPayment
	account, txn, err := h.Svc.Debit(r.Context(), userID, amount, meta)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]any{
		"wallet":      accountView(account),
		"transaction": transactionView(txn),
	})
}

// Balance returns the user's wallet, creating it on first access.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	account, err := h.Svc.Balance(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	common.Data(w, http.StatusOK, accountView(account))
}

// History lists the wallet's transactions, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	account, txns, err := h.Svc.History(r.Context(), userID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(txns))
	for _, txn := range txns {
		views = append(views, transactionView(txn))
	}
	common.Data(w, http.StatusOK, map[string]any{
		"wallet":       accountView(account),
		"transactions": views,
	})
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

// Reverse cancels a completed transaction. Reversal preconditions failing
// indicates a workflow bug upstream, so those errors are logged by the
// request middleware and reported without internal detail.
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	txnID, err := uuid.Parse(chi.URLParam(r, "transactionId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transaction id", nil)
		return
	}
	var req reverseRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	reversal, err := h.Svc.Reverse(r.Context(), txnID, req.Reason)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if h.Events != nil {
		_ = h.Events.Emit(r.Context(), events.TopicWalletReversed, txnID, map[string]any{
			"reversalId": reversal.ID.String(),
			"walletId":   reversal.WalletID.String(),
			"amount":     reversal.Amount.String(),
		})
	}
	common.Data(w, http.StatusCreated, transactionView(reversal))
}

func writeLedgerError(w http.ResponseWriter, err error) {
	ledgerAppError(err).Render(w)
}

func ledgerAppError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return common.NewAppError("INVALID_AMOUNT", "amount must be positive", http.StatusBadRequest, err)
	case errors.Is(err, ErrInsufficientBalance):
		return common.NewAppError("INSUFFICIENT_BALANCE", "wallet balance is insufficient", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrWalletBlocked):
		return common.NewAppError("WALLET_BLOCKED", "wallet is blocked", http.StatusForbidden, err)
	case errors.Is(err, ErrAlreadyReversed):
		return common.NewAppError("ALREADY_REVERSED", "transaction already reversed", http.StatusConflict, err)
	case errors.Is(err, ErrNotReversible), errors.Is(err, ErrNotCompleted):
		return common.NewAppError("NOT_REVERSIBLE", "transaction cannot be reversed", http.StatusConflict, err)
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "wallet or transaction not found", http.StatusNotFound, err)
	case errors.Is(err, ErrConcurrencyExhausted):
		return common.NewAppError("CONFLICT_RETRY", "wallet busy, retry later", http.StatusServiceUnavailable, err)
	default:
		return common.NewAppError("INTERNAL", "wallet operation failed", http.StatusInternalServerError, err)
	}
}

func accountView(a Account) map[string]any {
	return map[string]any{
		"id":           a.ID.String(),
		"userId":       a.UserID.String(),
		"balance":      a.Balance.String(),
		"totalCredits": a.TotalCredits.String(),
		"totalDebits":  a.TotalDebits.String(),
		"isBlocked":    a.Blocked,
		"updatedAt":    a.UpdatedAt,
	}
}

func transactionView(t Transaction) map[string]any {
	view := map[string]any{
		"id":           t.ID.String(),
		"walletId":     t.WalletID.String(),
		"type":         t.Type,
		"amount":       t.Amount.String(),
		"balanceAfter": t.BalanceAfter.String(),
		"category":     t.Category,
		"status":       t.Status,
		"createdAt":    t.CreatedAt,
	}
	if t.Note != "" {
		view["note"] = t.Note
	}
	if t.RelatedOrder != nil {
		view["relatedOrder"] = t.RelatedOrder.String()
	}
	if t.ReversalOf != nil {
		view["reversalOf"] = t.ReversalOf.String()
	}
	if t.ReversedBy != nil {
		view["reversedBy"] = t.ReversedBy.String()
	}
	return view
}
