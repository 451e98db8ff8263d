package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// Store is an in-memory inventory and order store useful for local
// development and tests. Units of work are serialized: only one scope is open
// at a time, and its writes become visible only on commit.
type Store struct {
	gate chan struct{}

	mu       sync.RWMutex
	products map[string]domain.Product
	orders   map[string]storedOrder
	seq      int64
}

type storedOrder struct {
	order domain.Order
	seq   int64
}

var (
	_ ports.UnitOfWork  = (*Store)(nil)
	_ ports.OrderReader = (*Store)(nil)
	_ ports.Catalog     = (*Store)(nil)
)

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		gate:     make(chan struct{}, 1),
		products: make(map[string]domain.Product),
		orders:   make(map[string]storedOrder),
	}
}

// Do runs fn inside a serialized scope. Staged writes are applied only when fn
// returns nil and ctx is still live; on error or panic they are dropped.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, scope ports.Scope) error) error {
	if err := s.acquire(ctx); err != nil {
		return domain.NewStoreFailure("begin", err)
	}
	defer s.release()

	sc := &scope{
		store:    s,
		products: make(map[string]domain.Product),
	}

	if err := fn(ctx, sc); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return domain.NewStoreFailure("commit", err)
	}

	return s.commit(sc)
}

// UpsertProducts creates or replaces catalog entries. It waits for any open
// scope to finish so that catalog edits never interleave with a placement.
func (s *Store) UpsertProducts(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	if err := s.acquire(ctx); err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

// Product returns the committed state of a product.
func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// OrderCount reports the number of committed orders.
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// GetByID fetches a single committed order.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	order := cloneOrder(stored.order)
	return &order, nil
}

// ListByBuyer returns one page of the buyer's orders, newest first.
func (s *Store) ListByBuyer(_ context.Context, filter ports.ListFilter) (ports.OrderPage, error) {
	s.mu.RLock()
	var matched []storedOrder
	for _, stored := range s.orders {
		if stored.order.BuyerID == filter.BuyerID {
			matched = append(matched, stored)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	result := ports.OrderPage{Orders: []domain.Order{}, Total: len(matched)}

	start := (page - 1) * pageSize
	if start >= len(matched) {
		return result, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	for _, stored := range matched[start:end] {
		result.Orders = append(result.Orders, cloneOrder(stored.order))
	}
	return result, nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.gate
}

func (s *Store) commit(sc *scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range sc.orders {
		if _, exists := s.orders[order.ID]; exists {
			return domain.NewStoreFailure("commit", fmt.Errorf("order %s already exists", order.ID))
		}
	}

	for id, p := range sc.products {
		s.products[id] = p
	}
	for _, order := range sc.orders {
		s.seq++
		s.orders[order.ID] = storedOrder{order: order, seq: s.seq}
	}
	return nil
}

func (s *Store) committedProduct(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

type scope struct {
	store    *Store
	products map[string]domain.Product
	orders   []domain.Order
}

func (sc *scope) Inventory() ports.InventoryStore { return sc }

func (sc *scope) Orders() ports.OrderStore { return sc }

func (sc *scope) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreFailure("find product", err)
	}

	p, ok := sc.current(id)
	if !ok {
		return nil, domain.NewProductNotFoundError(id)
	}
	return &p, nil
}

func (sc *scope) WriteProductStock(ctx context.Context, product domain.Product, previousStock int) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStoreFailure("write product stock", err)
	}

	current, ok := sc.current(product.ID)
	if !ok {
		return domain.NewProductNotFoundError(product.ID)
	}
	if current.Stock != previousStock || product.Stock < 0 {
		return domain.ErrStockConflict
	}

	current.Stock = product.Stock
	sc.products[product.ID] = current
	return nil
}

func (sc *scope) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStoreFailure("create order", err)
	}
	if err := order.Validate(); err != nil {
		return domain.NewStoreFailure("create order", err)
	}

	for _, staged := range sc.orders {
		if staged.ID == order.ID {
			return domain.NewStoreFailure("create order", errors.New("duplicate order id"))
		}
	}

	sc.orders = append(sc.orders, cloneOrder(order))
	return nil
}

func (sc *scope) current(id string) (domain.Product, bool) {
	if p, ok := sc.products[id]; ok {
		return p, true
	}
	return sc.store.committedProduct(id)
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return clone
}
