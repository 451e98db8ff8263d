package kafka

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks event publishing. A failed publish does not fail the
// placement; it shows up only here and in the logs.
type Metrics struct {
	producerLatency  metric.Float64Histogram
	messagesProduced metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	latency, err := meter.Float64Histogram(
		"kafka_producer_latency_seconds",
		metric.WithDescription("Time to hand an event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_producer_latency histogram: %w", err)
	}

	produced, err := meter.Int64Counter(
		"kafka_messages_produced_total",
		metric.WithDescription("Events published by topic, event type and status"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_messages_produced counter: %w", err)
	}

	return &Metrics{producerLatency: latency, messagesProduced: produced}, nil
}

// RecordPublish records one publish attempt. A nil err counts as success.
func (m *Metrics) RecordPublish(ctx context.Context, topic, eventType string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.producerLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", status),
	))
	m.messagesProduced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("event_type", eventType),
		attribute.String("status", status),
	))
}
