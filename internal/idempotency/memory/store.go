package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/orderflow/internal/orders/ports"
)

type entry struct {
	response  ports.StoredResponse
	expiresAt time.Time
}

var (
	_ ports.IdempotencyStore  = (*Store)(nil)
	_ ports.IdempotencyPurger = (*Store)(nil)
)

// Store retains placement responses for replaying duplicate requests.
// The first response saved for a key wins until it expires.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a new in-memory idempotency store whose keys never expire.
func NewStore() *Store {
	return NewStoreWithTTL(0)
}

// NewStoreWithTTL creates a store whose keys expire after ttl. Zero disables expiry.
func NewStoreWithTTL(ttl time.Duration) *Store {
	return &Store{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Store) Lookup(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	if !ok || s.expired(value) {
		return nil, nil
	}
	response := value.response
	response.Body = append([]byte(nil), value.response.Body...)
	return &response, nil
}

func (s *Store) Remember(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok && !s.expired(existing) {
		return nil
	}

	now := s.now()
	e := entry{response: response}
	e.response.Body = append([]byte(nil), response.Body...)
	e.response.StoredAt = now
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.items[key] = e
	return nil
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// Purge drops expired entries.
func (s *Store) Purge(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, e := range s.items {
		if s.expired(e) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}
