package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersPlacedTotal      metric.Int64Counter
	orderPlacementDuration metric.Float64Histogram
	orderLinesPerOrder     metric.Int64Histogram
	eventPublishFailures   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersPlacedTotal, err = meter.Int64Counter(
		"orders_placed_total",
		metric.WithDescription("Total number of order placement attempts by outcome"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_placed_total counter: %w", err)
	}

	m.orderPlacementDuration, err = meter.Float64Histogram(
		"order_placement_duration_seconds",
		metric.WithDescription("Duration of order placement operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_placement_duration histogram: %w", err)
	}

	m.orderLinesPerOrder, err = meter.Int64Histogram(
		"order_lines_per_order",
		metric.WithDescription("Number of lines in successfully placed orders"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_lines_per_order histogram: %w", err)
	}

	m.eventPublishFailures, err = meter.Int64Counter(
		"order_event_publish_failures_total",
		metric.WithDescription("Placed orders whose post-commit event could not be published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_event_publish_failures_total counter: %w", err)
	}

	return m, nil
}

// RecordOrderPlaced counts one placement attempt. kind is empty on success.
func (m *Metrics) RecordOrderPlaced(ctx context.Context, kind string) {
	status := "success"
	if kind != "" {
		status = "error"
	}
	m.ordersPlacedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) RecordOrderPlacementDuration(ctx context.Context, durationSeconds float64) {
	m.orderPlacementDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordOrderLines(ctx context.Context, lines int) {
	m.orderLinesPerOrder.Record(ctx, int64(lines))
}

func (m *Metrics) RecordEventPublishFailure(ctx context.Context) {
	m.eventPublishFailures.Add(ctx, 1)
}
