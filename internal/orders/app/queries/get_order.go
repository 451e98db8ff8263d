package queries

import (
	"context"
	"errors"
	"strings"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// GetOrderQuery represents a buyer's request to retrieve one of their orders.
type GetOrderQuery struct {
	OrderID string
	BuyerID string
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if the
// buyer owns it.
type GetOrderQueryHandler struct {
	reader ports.OrderReader
}

// NewGetOrderQueryHandler constructs a GetOrderQueryHandler.
func NewGetOrderQueryHandler(reader ports.OrderReader) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{reader: reader}
}

// Handle executes the query. Orders owned by someone else are reported as not
// found.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if strings.TrimSpace(query.BuyerID) == "" {
		return nil, domain.NewUnauthorizedError()
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.reader.GetByID(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != strings.TrimSpace(query.BuyerID) {
		return nil, domain.ErrOrderNotFound
	}

	return order, nil
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return errors.New("order_id is required")
	}
	return nil
}
