package http

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestsTotal    metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	duration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration by route"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration histogram: %w", err)
	}

	total, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total counter: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_in_flight counter: %w", err)
	}

	return &Metrics{
		requestDuration:  duration,
		requestsTotal:    total,
		requestsInFlight: inFlight,
	}, nil
}

// RecordRequest counts a finished request. route is the matched pattern, not
// the raw path, so order ids do not become label values.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", statusCode),
	))
	m.requestDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", strconv.Itoa(statusCode/100)+"xx"),
	))
}

// TrackInFlight marks a request as started and returns the func that marks
// it finished.
func (m *Metrics) TrackInFlight(ctx context.Context) func() {
	m.requestsInFlight.Add(ctx, 1)
	return func() { m.requestsInFlight.Add(ctx, -1) }
}
