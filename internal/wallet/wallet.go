// Package wallet maintains per-user balances as the fold of an append-only
// transaction ledger. Balances never go negative and every mutation is a
// single conditional update against the store, so two racing debits can
// never both spend the same rupee.
package wallet

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

// TxType is the direction of a ledger transaction.
type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
)

// TxStatus is the lifecycle state of a ledger transaction.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
	StatusReversed  TxStatus = "reversed"
)

// Category tags a transaction for audit reporting.
type Category string

const (
	CategoryOrderPayment    Category = "order_payment"
	CategoryOrderRefund     Category = "order_refund"
	CategoryTopup           Category = "topup"
	CategoryAdminAdjustment Category = "admin_adjustment"
	CategoryReversal        Category = "reversal"
)

// Account is a user's wallet. Created lazily on first access, mutated only
// through ledger transaction application, never deleted.
type Account struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"userId"`
	Balance      money.Money `json:"balance"`
	TotalCredits money.Money `json:"totalCredits"`
	TotalDebits  money.Money `json:"totalDebits"`
	Blocked      bool        `json:"isBlocked"`
	Version      int64       `json:"-"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Transaction is one immutable ledger entry. The only mutation ever applied
// after creation is the completed -> reversed status transition, which links
// the transaction to its reversal.
type Transaction struct {
	ID           uuid.UUID   `json:"id"`
	WalletID     uuid.UUID   `json:"walletId"`
	Type         TxType      `json:"type"`
	Amount       money.Money `json:"amount"`
	BalanceAfter money.Money `json:"balanceAfter"`
	Category     Category    `json:"category"`
	Status       TxStatus    `json:"status"`
	Note         string      `json:"note,omitempty"`
	RelatedOrder *uuid.UUID  `json:"relatedOrder,omitempty"`
	ReversalOf   *uuid.UUID  `json:"reversalOf,omitempty"`
	ReversedBy   *uuid.UUID  `json:"reversedBy,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// IsReversible reports whether the transaction can still be reversed. A
// reversal is itself never reversible, which keeps the pairing one hop deep.
func (t Transaction) IsReversible() bool {
	return t.Status == StatusCompleted && t.ReversedBy == nil && t.ReversalOf == nil
}

// Metadata carries the audit fields attached to a new transaction.
type Metadata struct {
	Category     Category
	Note         string
	RelatedOrder *uuid.UUID
}
