package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dejobratic/orderflow/internal/orders/adapters/memory"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

func seededStore(t *testing.T, products ...domain.Product) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.UpsertProducts(context.Background(), products))
	return store
}

func widget(stock int) domain.Product {
	return domain.Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(20), Stock: stock}
}

func pendingOrder(id, buyerID string, createdAt time.Time) domain.Order {
	return domain.NewPendingOrder(id, buyerID, []domain.OrderLine{
		{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(20)},
	}, createdAt)
}

func TestStoreDo(t *testing.T) {
	ctx := context.Background()

	t.Run("commits staged writes when the workflow succeeds", func(t *testing.T) {
		store := seededStore(t, widget(5))

		err := store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
			p, err := scope.Inventory().FindProduct(ctx, "p1")
			if err != nil {
				return err
			}
			reserved, err := p.Reserve(2)
			if err != nil {
				return err
			}
			if err := scope.Inventory().WriteProductStock(ctx, reserved, p.Stock); err != nil {
				return err
			}
			return scope.Orders().CreateOrder(ctx, pendingOrder("o1", "u1", time.Now()))
		})

		require.NoError(t, err)
		p, _ := store.Product("p1")
		assert.Equal(t, 3, p.Stock)
		assert.Equal(t, 1, store.OrderCount())
	})

	t.Run("drops staged writes and returns the workflow error unchanged", func(t *testing.T) {
		store := seededStore(t, widget(5))
		sentinel := errors.New("abort")

		err := store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
			p, _ := scope.Inventory().FindProduct(ctx, "p1")
			reserved, _ := p.Reserve(5)
			require.NoError(t, scope.Inventory().WriteProductStock(ctx, reserved, p.Stock))
			require.NoError(t, scope.Orders().CreateOrder(ctx, pendingOrder("o1", "u1", time.Now())))
			return sentinel
		})

		assert.Same(t, sentinel, err)
		p, _ := store.Product("p1")
		assert.Equal(t, 5, p.Stock)
		assert.Equal(t, 0, store.OrderCount())
	})

	t.Run("drops staged writes and releases the scope on panic", func(t *testing.T) {
		store := seededStore(t, widget(5))

		assert.Panics(t, func() {
			_ = store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
				p, _ := scope.Inventory().FindProduct(ctx, "p1")
				reserved, _ := p.Reserve(1)
				_ = scope.Inventory().WriteProductStock(ctx, reserved, p.Stock)
				panic("boom")
			})
		})

		p, _ := store.Product("p1")
		assert.Equal(t, 5, p.Stock)

		err := store.Do(ctx, func(context.Context, ports.Scope) error { return nil })
		assert.NoError(t, err, "expected the scope to be released after panic")
	})

	t.Run("does not commit when the context is cancelled mid-scope", func(t *testing.T) {
		store := seededStore(t, widget(5))
		cctx, cancel := context.WithCancel(ctx)

		err := store.Do(cctx, func(ctx context.Context, scope ports.Scope) error {
			p, _ := scope.Inventory().FindProduct(ctx, "p1")
			reserved, _ := p.Reserve(1)
			_ = scope.Inventory().WriteProductStock(ctx, reserved, p.Stock)
			cancel()
			return nil
		})

		assert.ErrorIs(t, err, domain.ErrStoreFailure)
		assert.ErrorIs(t, err, context.Canceled)
		p, _ := store.Product("p1")
		assert.Equal(t, 5, p.Stock)
	})

	t.Run("reports unknown products", func(t *testing.T) {
		store := seededStore(t, widget(5))

		err := store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
			_, err := scope.Inventory().FindProduct(ctx, "missing")
			return err
		})

		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("rejects stale conditional writes", func(t *testing.T) {
		store := seededStore(t, widget(5))

		err := store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
			p, _ := scope.Inventory().FindProduct(ctx, "p1")
			reserved, _ := p.Reserve(1)
			return scope.Inventory().WriteProductStock(ctx, reserved, p.Stock+1)
		})

		assert.ErrorIs(t, err, domain.ErrStockConflict)
	})

	t.Run("sees its own staged stock", func(t *testing.T) {
		store := seededStore(t, widget(5))

		err := store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
			for i := 0; i < 2; i++ {
				p, err := scope.Inventory().FindProduct(ctx, "p1")
				if err != nil {
					return err
				}
				reserved, err := p.Reserve(2)
				if err != nil {
					return err
				}
				if err := scope.Inventory().WriteProductStock(ctx, reserved, p.Stock); err != nil {
					return err
				}
			}
			return nil
		})

		require.NoError(t, err)
		p, _ := store.Product("p1")
		assert.Equal(t, 1, p.Stock)
	})
}

func TestStoreDoConcurrentReservations(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := seededStore(t, widget(1))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
				p, err := scope.Inventory().FindProduct(ctx, "p1")
				if err != nil {
					return err
				}
				reserved, err := p.Reserve(1)
				if err != nil {
					return err
				}
				return scope.Inventory().WriteProductStock(ctx, reserved, p.Stock)
			})
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, insufficient)
	p, _ := store.Product("p1")
	assert.Equal(t, 0, p.Stock)
}

func TestStoreOrderReader(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, widget(100))
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"o1", "o2", "o3"} {
		order := pendingOrder(id, "u1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
			return scope.Orders().CreateOrder(ctx, order)
		}))
	}
	require.NoError(t, store.Do(ctx, func(ctx context.Context, scope ports.Scope) error {
		return scope.Orders().CreateOrder(ctx, pendingOrder("other", "u2", base))
	}))

	t.Run("gets an order by id", func(t *testing.T) {
		order, err := store.GetByID(ctx, "o2")
		require.NoError(t, err)
		assert.Equal(t, "u1", order.BuyerID)
		assert.Len(t, order.Lines, 1)
	})

	t.Run("returns not found for unknown ids", func(t *testing.T) {
		_, err := store.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("lists a buyer's orders newest first", func(t *testing.T) {
		page, err := store.ListByBuyer(ctx, ports.ListFilter{BuyerID: "u1", Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Orders, 2)
		assert.Equal(t, "o3", page.Orders[0].ID)
		assert.Equal(t, "o2", page.Orders[1].ID)

		page, err = store.ListByBuyer(ctx, ports.ListFilter{BuyerID: "u1", Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page.Orders, 1)
		assert.Equal(t, "o1", page.Orders[0].ID)
	})

	t.Run("returns an empty page past the end", func(t *testing.T) {
		page, err := store.ListByBuyer(ctx, ports.ListFilter{BuyerID: "u1", Page: 5, PageSize: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Orders)
		assert.Equal(t, 3, page.Total)
	})
}

func TestStoreUpsertProducts(t *testing.T) {
	store := memory.NewStore()

	err := store.UpsertProducts(context.Background(), []domain.Product{{ID: "p1", Stock: -1}})
	assert.Error(t, err)

	err = store.UpsertProducts(context.Background(), []domain.Product{
		{ID: "p2", Price: decimal.NewFromInt(1), Stock: 1},
		{ID: "p3", Price: decimal.RequireFromString("9.999"), Stock: 1},
	})
	assert.ErrorContains(t, err, "decimal places")

	for _, id := range []string{"p1", "p2", "p3"} {
		_, ok := store.Product(id)
		assert.False(t, ok, id)
	}
}
