package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/database"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

type ObservableOrderReader struct {
	reader  ports.OrderReader
	metrics *database.Metrics
}

func NewObservableOrderReader(reader ports.OrderReader, metrics *database.Metrics) *ObservableOrderReader {
	return &ObservableOrderReader{
		reader:  reader,
		metrics: metrics,
	}
}

func (r *ObservableOrderReader) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderReader.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	order, err := r.reader.GetByID(ctx, id)
	r.metrics.RecordQuery(ctx, "get_order_by_id", time.Since(start).Seconds())

	if err != nil {
		recordFailure(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableOrderReader) ListByBuyer(ctx context.Context, filter ports.ListFilter) (ports.OrderPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderReader.ListByBuyer")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("operation", "list_by_buyer"),
		attribute.String("buyer.id", filter.BuyerID),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	)

	start := time.Now()
	page, err := r.reader.ListByBuyer(ctx, filter)
	r.metrics.RecordQuery(ctx, "list_orders_by_buyer", time.Since(start).Seconds())

	if err != nil {
		recordFailure(span, err)
		return ports.OrderPage{}, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.Int("result.count", len(page.Orders)),
		attribute.Int("result.total", page.Total),
	)
	telemetry.SetSpanSuccess(span)
	return page, nil
}
