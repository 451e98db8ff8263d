package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/orderflow/internal/orders/ports"
)

const (
	lookupSQL = `
		SELECT status_code, body, order_id, created_at
		FROM idempotency_keys
		WHERE key = $1
		  AND ($2::bigint = 0 OR created_at > NOW() - make_interval(secs => $2::bigint))
	`

	// An expired row is replaced; a live one is left alone.
	rememberSQL = `
		INSERT INTO idempotency_keys (key, status_code, body, order_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body = EXCLUDED.body,
		    order_id = EXCLUDED.order_id,
		    created_at = NOW()
		WHERE $5::bigint > 0
		  AND idempotency_keys.created_at <= NOW() - make_interval(secs => $5::bigint)
	`

	purgeSQL = `
		DELETE FROM idempotency_keys
		WHERE created_at <= NOW() - make_interval(secs => $1::bigint)
	`
)

var (
	_ ports.IdempotencyStore  = (*Store)(nil)
	_ ports.IdempotencyPurger = (*Store)(nil)
)

// Store keeps placement responses in the idempotency_keys table. A zero ttl
// keeps keys forever.
type Store struct {
	pool *pgxpool.Pool
	ttl  int64
}

func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: int64(ttl / time.Second)}
}

func (s *Store) Lookup(ctx context.Context, key string) (*ports.StoredResponse, error) {
	var resp ports.StoredResponse
	err := s.pool.QueryRow(ctx, lookupSQL, key, s.ttl).
		Scan(&resp.StatusCode, &resp.Body, &resp.OrderID, &resp.StoredAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return &resp, nil
}

func (s *Store) Remember(ctx context.Context, key string, response ports.StoredResponse) error {
	if _, err := s.pool.Exec(ctx, rememberSQL,
		key, response.StatusCode, response.Body, response.OrderID, s.ttl,
	); err != nil {
		return fmt.Errorf("remember idempotency key: %w", err)
	}
	return nil
}

// Purge deletes expired keys and reports how many were removed. It does
// nothing when keys never expire.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.ttl == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, purgeSQL, s.ttl)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
