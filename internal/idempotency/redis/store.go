package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dejobratic/orderflow/internal/orders/ports"
)

const keyPrefix = "orders:idempotency:"

type storedResponse struct {
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"body"`
	OrderID    string    `json:"orderId"`
	StoredAt   time.Time `json:"storedAt"`
}

var _ ports.IdempotencyStore = (*Store)(nil)

// Store keeps placement responses in Redis. Keys expire after ttl; the first
// response saved for a key wins.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewClient parses redisURL and verifies the server is reachable.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func NewStore(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Lookup(ctx context.Context, key string) (*ports.StoredResponse, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}

	return &ports.StoredResponse{
		StatusCode: stored.StatusCode,
		Body:       stored.Body,
		OrderID:    stored.OrderID,
		StoredAt:   stored.StoredAt,
	}, nil
}

func (s *Store) Remember(ctx context.Context, key string, response ports.StoredResponse) error {
	data, err := json.Marshal(storedResponse{
		StatusCode: response.StatusCode,
		Body:       response.Body,
		OrderID:    response.OrderID,
		StoredAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode idempotency key: %w", err)
	}

	if err := s.client.SetNX(ctx, keyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}
