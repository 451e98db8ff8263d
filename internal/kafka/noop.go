package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// NoopEventBus logs events without sending them to Kafka. Used when no
// brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderPlaced(ctx context.Context, event ports.OrderPlaced) error {
	n.logger.DebugContext(ctx, "event::order_placed",
		"event_id", event.EventID,
		"order_id", event.OrderID,
		"buyer_id", event.BuyerID,
	)
	return nil
}

func (n *NoopEventBus) Topic() string {
	return TopicOrderPlaced
}
