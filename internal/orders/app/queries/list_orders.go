package queries

import (
	"context"
	"strings"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListBuyerOrdersQuery pages through a buyer's orders. Non-positive values
// fall back to the defaults.
type ListBuyerOrdersQuery struct {
	BuyerID  string
	Page     int
	PageSize int
}

// OrderList is one page of a buyer's orders with paging totals.
type OrderList struct {
	Orders      []domain.Order
	Page        int
	PageSize    int
	TotalPages  int
	TotalOrders int
}

type ListBuyerOrdersQueryHandler struct {
	reader ports.OrderReader
}

func NewListBuyerOrdersQueryHandler(reader ports.OrderReader) *ListBuyerOrdersQueryHandler {
	return &ListBuyerOrdersQueryHandler{reader: reader}
}

func (h *ListBuyerOrdersQueryHandler) Handle(ctx context.Context, query ListBuyerOrdersQuery) (*OrderList, error) {
	buyerID := strings.TrimSpace(query.BuyerID)
	if buyerID == "" {
		return nil, domain.NewUnauthorizedError()
	}

	page, pageSize := query.normalize()

	result, err := h.reader.ListByBuyer(ctx, ports.ListFilter{
		BuyerID:  buyerID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	orders := result.Orders
	if orders == nil {
		orders = []domain.Order{}
	}

	return &OrderList{
		Orders:      orders,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  max(1, (result.Total+pageSize-1)/pageSize),
		TotalOrders: result.Total,
	}, nil
}

func (q ListBuyerOrdersQuery) normalize() (int, int) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
