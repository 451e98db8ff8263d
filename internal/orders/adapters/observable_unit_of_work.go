package adapters

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/database"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

// ObservableUnitOfWork traces every unit of work and the store calls made
// through its scope.
type ObservableUnitOfWork struct {
	uow     ports.UnitOfWork
	metrics *database.Metrics
}

func NewObservableUnitOfWork(uow ports.UnitOfWork, metrics *database.Metrics) *ObservableUnitOfWork {
	return &ObservableUnitOfWork{
		uow:     uow,
		metrics: metrics,
	}
}

func (u *ObservableUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, scope ports.Scope) error) error {
	ctx, span := telemetry.StartSpan(ctx, "UnitOfWork.Do")
	defer span.End()

	err := u.uow.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
		return fn(ctx, &observableScope{scope: scope, metrics: u.metrics})
	})

	outcome := "commit"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStoreConflict):
		outcome = "conflict"
	default:
		outcome = "rollback"
	}
	u.metrics.RecordTransaction(ctx, outcome)
	telemetry.AddSpanAttributes(span, attribute.String("transaction.outcome", outcome))

	if err != nil {
		recordFailure(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

type observableScope struct {
	scope   ports.Scope
	metrics *database.Metrics
}

func (s *observableScope) Inventory() ports.InventoryStore {
	return &observableInventory{store: s.scope.Inventory(), metrics: s.metrics}
}

func (s *observableScope) Orders() ports.OrderStore {
	return &observableOrderStore{store: s.scope.Orders(), metrics: s.metrics}
}

type observableInventory struct {
	store   ports.InventoryStore
	metrics *database.Metrics
}

func (i *observableInventory) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := telemetry.StartSpan(ctx, "InventoryStore.FindProduct")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("product.id", id),
		attribute.String("operation", "find_product"),
	)

	start := time.Now()
	product, err := i.store.FindProduct(ctx, id)
	i.metrics.RecordQuery(ctx, "find_product", time.Since(start).Seconds())

	if err != nil {
		recordFailure(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("product.stock", product.Stock))
	telemetry.SetSpanSuccess(span)
	return product, nil
}

func (i *observableInventory) WriteProductStock(ctx context.Context, product domain.Product, previousStock int) error {
	ctx, span := telemetry.StartSpan(ctx, "InventoryStore.WriteProductStock")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("product.id", product.ID),
		attribute.Int("product.previous_stock", previousStock),
		attribute.Int("product.new_stock", product.Stock),
		attribute.String("operation", "write_product_stock"),
	)

	start := time.Now()
	err := i.store.WriteProductStock(ctx, product, previousStock)
	i.metrics.RecordQuery(ctx, "write_product_stock", time.Since(start).Seconds())

	if err != nil {
		recordFailure(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

type observableOrderStore struct {
	store   ports.OrderStore
	metrics *database.Metrics
}

func (o *observableOrderStore) CreateOrder(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderStore.CreateOrder")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.Int("order.lines", len(order.Lines)),
		attribute.String("operation", "create_order"),
	)

	start := time.Now()
	err := o.store.CreateOrder(ctx, order)
	o.metrics.RecordQuery(ctx, "create_order", time.Since(start).Seconds())

	if err != nil {
		recordFailure(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
