package ports

import (
	"context"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// OrderReader exposes read-only order queries used outside placement.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, filter ListFilter) (OrderPage, error)
}

// ListFilter narrows list queries to one buyer with 1-based pagination.
type ListFilter struct {
	BuyerID  string
	Page     int
	PageSize int
}

// OrderPage is one page of a buyer's orders, newest first.
type OrderPage struct {
	Orders []domain.Order
	Total  int
}
