package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption adjusts pool settings parsed from the connection string.
type PoolOption func(*pgxpool.Config)

func WithMaxConns(n int32) PoolOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

func WithMinConns(n int32) PoolOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MinConns = n
		}
	}
}

func WithMaxConnLifetime(d time.Duration) PoolOption {
	return func(cfg *pgxpool.Config) {
		if d > 0 {
			cfg.MaxConnLifetime = d
		}
	}
}

// NewPool opens a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := CheckHealth(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
