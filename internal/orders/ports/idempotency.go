package ports

import (
	"context"
	"time"
)

// StoredResponse is a placement response kept for replay. Keys reaching a
// store are already scoped to the buyer.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
	StoredAt   time.Time
}

// IdempotencyStore remembers the first successful response per key so a
// retried placement is answered without creating a second order.
type IdempotencyStore interface {
	// Lookup returns nil, nil for unknown or expired keys.
	Lookup(ctx context.Context, key string) (*StoredResponse, error)
	// Remember is a no-op when a live response already exists for key.
	Remember(ctx context.Context, key string, response StoredResponse) error
}

// IdempotencyPurger is implemented by stores that need expired keys removed
// explicitly.
type IdempotencyPurger interface {
	Purge(ctx context.Context) (int64, error)
}
