package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/kafka"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
	topic   string
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics, topic string) *ObservableEventBus {
	if topic == "" {
		topic = kafka.TopicOrderPlaced
	}
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
		topic:   topic,
	}
}

func (e *ObservableEventBus) PublishOrderPlaced(ctx context.Context, event ports.OrderPlaced) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishOrderPlaced")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", event.OrderID),
		attribute.String("event.id", event.EventID),
		attribute.String("event.type", kafka.EventOrderPlaced),
		attribute.String("topic", e.topic),
	)

	start := time.Now()
	err := e.bus.PublishOrderPlaced(ctx, event)
	e.metrics.RecordPublish(ctx, e.topic, kafka.EventOrderPlaced, time.Since(start), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
