package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/metrics"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

type ObservablePlaceOrderHandler struct {
	handler PlaceOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservablePlaceOrderHandler(handler PlaceOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservablePlaceOrderHandler {
	return &ObservablePlaceOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservablePlaceOrderHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.OrderSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "PlaceOrderCommand.Handle")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.buyer_id", cmd.BuyerID),
		attribute.Int("order.requested_lines", len(cmd.Lines)),
	)

	start := time.Now()
	var kind string
	defer func() {
		o.metrics.RecordOrderPlacementDuration(ctx, time.Since(start).Seconds())
		o.metrics.RecordOrderPlaced(ctx, kind)
	}()

	o.logger.InfoContext(ctx, "placing order",
		"buyer_id", cmd.BuyerID,
		"line_count", len(cmd.Lines),
	)

	summary, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		kind = string(domain.KindOf(err))

		log := o.logger.WarnContext
		if kind == string(domain.KindStoreFailure) {
			telemetry.RecordSpanError(span, err)
			telemetry.AddSpanAttributes(span, attribute.String("error.kind", kind))
			log = o.logger.ErrorContext
		} else {
			telemetry.RecordSpanRejection(span, kind, err)
		}
		log(ctx, "failed to place order",
			"error", err,
			"error_kind", kind,
			"buyer_id", cmd.BuyerID,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", summary.ID),
		attribute.String("order.total_price", summary.TotalPrice.String()),
		attribute.String("order.status", string(summary.Status)),
	)
	o.metrics.RecordOrderLines(ctx, len(summary.Lines))

	o.logger.InfoContext(ctx, "order placed",
		"order_id", summary.ID,
		"buyer_id", summary.BuyerID,
		"total_price", summary.TotalPrice.String(),
	)

	telemetry.SetSpanSuccess(span)

	return summary, nil
}
