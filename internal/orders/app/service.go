package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/orderflow/internal/orders/app/commands"
	"github.com/dejobratic/orderflow/internal/orders/app/queries"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/metrics"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/orders/validation"
)

// Service bundles use cases for handling orders via the API and the CLI.
type Service struct {
	events            ports.EventBus
	idemStore         ports.IdempotencyStore
	logger            *slog.Logger
	metrics           *metrics.Metrics
	placeOrderHandler commands.PlaceOrderHandler
	getOrderHandler   *queries.GetOrderQueryHandler
	listOrdersHandler *queries.ListBuyerOrdersQueryHandler
}

// Options tunes placement behaviour.
type Options struct {
	// MaxAttempts bounds placement attempts on store contention. 1 disables retry.
	MaxAttempts int
	// HandlerOptions customize the core placement handler.
	HandlerOptions []commands.Option
}

// NewService wires required dependencies.
func NewService(
	uow ports.UnitOfWork,
	reader ports.OrderReader,
	events ports.EventBus,
	idem ports.IdempotencyStore,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	opts Options,
) *Service {
	coreHandler := commands.NewPlaceOrderCommandHandler(uow, opts.HandlerOptions...)
	observableHandler := commands.NewObservablePlaceOrderHandler(coreHandler, logger, metrics)
	retryingHandler := commands.NewRetryingPlaceOrderHandler(observableHandler, logger, opts.MaxAttempts)

	return &Service{
		events:            events,
		idemStore:         idem,
		logger:            logger,
		metrics:           metrics,
		placeOrderHandler: retryingHandler,
		getOrderHandler:   queries.NewGetOrderQueryHandler(reader),
		listOrdersHandler: queries.NewListBuyerOrdersQueryHandler(reader),
	}
}

// PlaceOrderInput captures a buyer's cart.
type PlaceOrderInput struct {
	BuyerID string
	Lines   []validation.RawLine
}

// PlaceOrder places the order and, once committed, announces it. A failed
// announcement is logged and counted but does not undo the placement.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*domain.OrderSummary, error) {
	summary, err := s.placeOrderHandler.Handle(ctx, commands.PlaceOrderCommand{
		BuyerID: input.BuyerID,
		Lines:   input.Lines,
	})
	if err != nil {
		return nil, err
	}

	event := ports.OrderPlaced{
		EventID:    uuid.NewString(),
		OrderID:    summary.ID,
		BuyerID:    summary.BuyerID,
		TotalPrice: summary.TotalPrice,
		Lines:      summary.Lines,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.metrics.RecordEventPublishFailure(ctx)
		s.logger.ErrorContext(ctx, "order placed but failed to publish event",
			"error", err,
			"order_id", summary.ID,
			"event_id", event.EventID,
		)
	}

	return summary, nil
}

// GetOrder retrieves one of the buyer's orders by ID.
func (s *Service) GetOrder(ctx context.Context, buyerID, id string) (*domain.Order, error) {
	return s.getOrderHandler.Handle(ctx, queries.GetOrderQuery{OrderID: id, BuyerID: buyerID})
}

// ListOrders returns a page of the buyer's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, query queries.ListBuyerOrdersQuery) (*queries.OrderList, error) {
	return s.listOrdersHandler.Handle(ctx, query)
}

// SaveIdempotentResponse writes response details for a buyer's key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, buyerID, key string, response ports.StoredResponse) error {
	return s.idemStore.Remember(ctx, idempotencyKey(buyerID, key), response)
}

// GetIdempotentResponse retrieves previously stored response data for a buyer's key.
func (s *Service) GetIdempotentResponse(ctx context.Context, buyerID, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Lookup(ctx, idempotencyKey(buyerID, key))
}

func idempotencyKey(buyerID, key string) string {
	return buyerID + ":" + key
}
