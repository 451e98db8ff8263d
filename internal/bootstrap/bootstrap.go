// Package bootstrap assembles the order service from configuration. The API
// server and the CLI share it so both run the same placement pipeline.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/dejobratic/orderflow/internal/config"
	"github.com/dejobratic/orderflow/internal/database"
	idemmemory "github.com/dejobratic/orderflow/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/orderflow/internal/idempotency/postgres"
	idemredis "github.com/dejobratic/orderflow/internal/idempotency/redis"
	"github.com/dejobratic/orderflow/internal/kafka"
	"github.com/dejobratic/orderflow/internal/orders/adapters"
	orderspostgres "github.com/dejobratic/orderflow/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/orderflow/internal/orders/app"
	"github.com/dejobratic/orderflow/internal/orders/metrics"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// Dependencies holds the wired service and the resources it owns.
type Dependencies struct {
	Pool        *pgxpool.Pool
	Service     *ordersapp.Service
	Catalog     *orderspostgres.Catalog
	Idempotency ports.IdempotencyStore

	closers []func() error
}

// Build connects to Postgres and the configured backends and wires the
// service. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	isoLevel, err := orderspostgres.ParseIsolationLevel(cfg.Database.IsolationLevel)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL,
		database.WithMaxConns(cfg.Database.MaxConns),
		database.WithMinConns(cfg.Database.MinConns),
		database.WithMaxConnLifetime(cfg.Database.MaxConnLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	deps := &Dependencies{
		Pool:    pool,
		Catalog: orderspostgres.NewCatalog(pool),
	}
	deps.closers = append(deps.closers, func() error {
		pool.Close()
		return nil
	})

	meter := otel.Meter(cfg.Service.Name)

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("create database metrics: %w", err)
	}
	if err := database.ObservePool(meter, pool); err != nil {
		deps.Close()
		return nil, err
	}
	orderMetrics, err := metrics.NewMetrics(meter)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("create order metrics: %w", err)
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("create kafka metrics: %w", err)
	}

	uow := adapters.NewObservableUnitOfWork(
		orderspostgres.NewUnitOfWork(pool, orderspostgres.WithIsolationLevel(isoLevel)),
		dbMetrics,
	)
	reader := adapters.NewObservableOrderReader(orderspostgres.NewOrderReader(pool), dbMetrics)

	idemStore, err := deps.idempotencyStore(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Idempotency = idemStore

	events := deps.eventBus(cfg, logger, kafkaMetrics)

	deps.Service = ordersapp.NewService(uow, reader, events, idemStore, logger, orderMetrics, ordersapp.Options{
		MaxAttempts: cfg.Orders.PlacementMaxAttempts,
	})

	logger.Info("order service ready",
		"isolation_level", cfg.Database.IsolationLevel,
		"idempotency_backend", cfg.Orders.IdempotencyBackend,
		"kafka_brokers", len(cfg.Kafka.Brokers),
		"max_attempts", cfg.Orders.PlacementMaxAttempts,
	)

	return deps, nil
}

func (d *Dependencies) idempotencyStore(ctx context.Context, cfg *config.Config) (ports.IdempotencyStore, error) {
	switch cfg.Orders.IdempotencyBackend {
	case config.BackendMemory:
		return idemmemory.NewStoreWithTTL(cfg.Orders.IdempotencyTTL), nil
	case config.BackendRedis:
		client, err := idemredis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		d.closers = append(d.closers, client.Close)
		return idemredis.NewStore(client, cfg.Orders.IdempotencyTTL), nil
	default:
		return idempostgres.NewStore(d.Pool, cfg.Orders.IdempotencyTTL), nil
	}
}

func (d *Dependencies) eventBus(cfg *config.Config, logger *slog.Logger, kafkaMetrics *kafka.Metrics) ports.EventBus {
	if len(cfg.Kafka.Brokers) == 0 {
		return adapters.NewObservableEventBus(kafka.NewNoopEventBus(logger), kafkaMetrics, cfg.Kafka.Topic)
	}

	publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
	d.closers = append(d.closers, publisher.Close)
	return adapters.NewObservableEventBus(publisher, kafkaMetrics, publisher.Topic())
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
