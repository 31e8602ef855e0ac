// Package sequence issues strictly increasing, human-readable document
// numbers (invoices, estimates, orders) scoped by period. The counter
// advance is a single atomic increment-and-return in the store, never a
// read-then-write, so concurrent callers always receive distinct values.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/backend-bazaar/internal/obs"
)

// Document types issued by the backend.
const (
	DocInvoice  = "invoice"
	DocEstimate = "estimate"
	DocOrder    = "order"
)

const defaultWidth = 4

// Store advances the counter for (docType, periodKey) and returns the new
// value. The increment must be atomic.
type Store interface {
	Next(ctx context.Context, docType, periodKey string) (int64, error)
}

// Numberer formats counter values into document numbers such as
// "2025070001" (period key + zero-padded sequence).
type Numberer struct {
	Store Store
	Width int
}

// PeriodKey returns the year+month period key for the given time.
func PeriodKey(t time.Time) string {
	return t.Format("200601")
}

// Next issues the next number for the document type and period.
func (n Numberer) Next(ctx context.Context, docType, periodKey string) (string, error) {
	width := n.Width
	if width <= 0 {
		width = defaultWidth
	}
	value, err := n.Store.Next(ctx, docType, periodKey)
	if err != nil {
		return "", fmt.Errorf("sequence: next %s/%s: %w", docType, periodKey, err)
	}
	obs.ObserveSequenceIssued(docType)
	return fmt.Sprintf("%s%0*d", periodKey, width, value), nil
}
