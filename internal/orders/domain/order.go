package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

// StatusPending is the only status assigned by placement. Later transitions
// belong to fulfilment and cancellation workflows.
const StatusPending OrderStatus = "pending"

// OrderLine is one purchased product, fixed at placement time.
type OrderLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is the line's contribution to the order total.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order represents a confirmed purchase.
type Order struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyerId"`
	Description *string         `json:"description"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Status      OrderStatus     `json:"status"`
	Lines       []OrderLine     `json:"lines"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// OrderSummary is the public view of a freshly placed order.
type OrderSummary struct {
	ID         string          `json:"id"`
	BuyerID    string          `json:"buyerId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
	Lines      []OrderLine     `json:"lines"`
}

// NewPendingOrder builds an order from finalized lines, deriving the total.
func NewPendingOrder(id, buyerID string, lines []OrderLine, now time.Time) Order {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}

	return Order{
		ID:         id,
		BuyerID:    buyerID,
		TotalPrice: total,
		Status:     StatusPending,
		Lines:      lines,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(o.BuyerID) == "" {
		return errors.New("buyer_id is required")
	}
	if len(o.Lines) == 0 {
		return errors.New("order must have at least one line")
	}

	total := decimal.Zero
	for i, line := range o.Lines {
		if line.Quantity < 1 {
			return fmt.Errorf("line %d: quantity must be at least 1", i)
		}
		if line.Price.IsNegative() {
			return fmt.Errorf("line %d: price must be non-negative", i)
		}
		total = total.Add(line.Subtotal())
	}

	if !total.Equal(o.TotalPrice) {
		return fmt.Errorf("total_price %s does not match line sum %s", o.TotalPrice, total)
	}
	return nil
}

// Summary returns the order's public summary.
func (o Order) Summary() OrderSummary {
	lines := make([]OrderLine, len(o.Lines))
	copy(lines, o.Lines)

	return OrderSummary{
		ID:         o.ID,
		BuyerID:    o.BuyerID,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		Lines:      lines,
	}
}
