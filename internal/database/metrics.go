package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics covers statement latency and unit of work outcomes.
type Metrics struct {
	queryDuration     metric.Float64Histogram
	transactionsTotal metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	queryDuration, err := meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Duration of a single statement inside a unit of work or read"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration histogram: %w", err)
	}

	transactionsTotal, err := meter.Int64Counter(
		"db_transactions_total",
		metric.WithDescription("Units of work by outcome"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_transactions_total counter: %w", err)
	}

	return &Metrics{queryDuration: queryDuration, transactionsTotal: transactionsTotal}, nil
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, durationSeconds float64) {
	m.queryDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordTransaction counts a finished unit of work. outcome is "commit",
// "rollback" or "conflict".
func (m *Metrics) RecordTransaction(ctx context.Context, outcome string) {
	m.transactionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// ObservePool reports connection pool usage on every collection.
func ObservePool(meter metric.Meter, pool *pgxpool.Pool) error {
	conns, err := meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Pool connections by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_connections gauge: %w", err)
	}

	maxConns, err := meter.Int64ObservableGauge(
		"db_pool_max_connections",
		metric.WithDescription("Configured pool size"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_max_connections gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(conns, int64(stat.AcquiredConns()), metric.WithAttributes(attribute.String("state", "acquired")))
		o.ObserveInt64(conns, int64(stat.IdleConns()), metric.WithAttributes(attribute.String("state", "idle")))
		o.ObserveInt64(conns, int64(stat.ConstructingConns()), metric.WithAttributes(attribute.String("state", "constructing")))
		o.ObserveInt64(maxConns, int64(stat.MaxConns()))
		return nil
	}, conns, maxConns)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}

	return nil
}
