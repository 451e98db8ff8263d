package ports

import (
	"context"
	"time"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/shopspring/decimal"
)

// OrderPlaced is published once a placement has committed.
type OrderPlaced struct {
	EventID    string             `json:"eventId"`
	OrderID    string             `json:"orderId"`
	BuyerID    string             `json:"buyerId"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	Lines      []domain.OrderLine `json:"lines"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlaced) error
}
