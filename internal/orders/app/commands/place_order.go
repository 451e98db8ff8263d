package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/orders/validation"
)

// PlaceOrderCommand asks to buy the given lines on behalf of a buyer.
type PlaceOrderCommand struct {
	BuyerID string
	Lines   []validation.RawLine
}

// PlaceOrderHandler places orders. Implementations are decorated for
// observability and retry.
type PlaceOrderHandler interface {
	Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.OrderSummary, error)
}

// PlaceOrderCommandHandler reserves stock for every line and records a pending
// order inside a single unit of work.
type PlaceOrderCommandHandler struct {
	uow   ports.UnitOfWork
	now   func() time.Time
	newID func() string
}

// Option customizes a PlaceOrderCommandHandler.
type Option func(*PlaceOrderCommandHandler)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *PlaceOrderCommandHandler) { h.now = now }
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(newID func() string) Option {
	return func(h *PlaceOrderCommandHandler) { h.newID = newID }
}

func NewPlaceOrderCommandHandler(uow ports.UnitOfWork, opts ...Option) *PlaceOrderCommandHandler {
	h := &PlaceOrderCommandHandler{
		uow:   uow,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PlaceOrderCommandHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.OrderSummary, error) {
	buyerID := strings.TrimSpace(cmd.BuyerID)
	if buyerID == "" {
		return nil, domain.NewUnauthorizedError()
	}

	lines, err := validation.Normalize(cmd.Lines)
	if err != nil {
		return nil, err
	}

	var summary domain.OrderSummary
	err = h.uow.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
		orderLines := make([]domain.OrderLine, 0, len(lines))
		for _, line := range lines {
			placed, err := reserveLine(ctx, scope.Inventory(), line)
			if err != nil {
				return err
			}
			orderLines = append(orderLines, placed)
		}

		order := domain.NewPendingOrder(h.newID(), buyerID, orderLines, h.now())
		if err := scope.Orders().CreateOrder(ctx, order); err != nil {
			return domain.NewStoreFailure("create order", err)
		}

		summary = order.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

func reserveLine(ctx context.Context, inventory ports.InventoryStore, line validation.Line) (domain.OrderLine, error) {
	product, err := inventory.FindProduct(ctx, line.ProductID)
	if err != nil {
		if domain.IsKind(err, domain.KindProductNotFound) {
			return domain.OrderLine{}, err
		}
		return domain.OrderLine{}, domain.NewStoreFailure("find product", err)
	}

	reserved, err := product.Reserve(line.Quantity)
	if err != nil {
		return domain.OrderLine{}, err
	}

	if err := inventory.WriteProductStock(ctx, reserved, product.Stock); err != nil {
		switch {
		case errors.Is(err, domain.ErrStockConflict):
			return domain.OrderLine{}, domain.NewInsufficientStockError(*product, line.Quantity)
		case domain.IsKind(err, domain.KindProductNotFound):
			return domain.OrderLine{}, err
		default:
			return domain.OrderLine{}, domain.NewStoreFailure("write product stock", err)
		}
	}

	return domain.OrderLine{
		ProductID: product.ID,
		Quantity:  line.Quantity,
		Price:     product.Price,
	}, nil
}
