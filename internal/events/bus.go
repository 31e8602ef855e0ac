// Package events publishes domain events to a Redis stream so downstream
// consumers (notifications, analytics) observe order activity without
// participating in the request path.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event topics.
const (
	TopicOrderCreated     = "order.created"
	TopicOrderCanceled    = "order.canceled"
	TopicInvoiceGenerated = "invoice.generated"
	TopicWalletReversed   = "wallet.reversed"
)

const defaultStream = "bazaar:events"

// Bus publishes events. Publishing is best-effort from the caller's point of
// view: handlers log failures but never fail the request over them.
type Bus struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

func (b *Bus) stream() string {
	if b != nil && strings.TrimSpace(b.Stream) != "" {
		return b.Stream
	}
	return defaultStream
}

// Emit appends the event to the stream. The payload must be JSON-encodable.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error {
	if b == nil || b.R == nil {
		return errors.New("events: redis client not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	if aggregateID == uuid.Nil {
		return errors.New("events: aggregate id is required")
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: b.stream(),
		Values: map[string]any{
			"topic":        topic,
			"aggregate_id": aggregateID.String(),
			"payload":      string(encoded),
			"occurred_at":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if b.MaxLen > 0 {
		args.MaxLen = b.MaxLen
		args.Approx = true
	}
	if err := b.R.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", topic, err)
	}
	return nil
}
