package commands_test

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
	"github.com/dejobratic/orderflow/internal/orders/app/commands"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/orders/validation"
)

type mockUnitOfWork struct {
	doFn func(ctx context.Context, fn func(ctx context.Context, scope ports.Scope) error) error
}

func (m *mockUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, scope ports.Scope) error) error {
	return m.doFn(ctx, fn)
}

type mockScope struct {
	inventory ports.InventoryStore
	orders    ports.OrderStore
}

func (m *mockScope) Inventory() ports.InventoryStore { return m.inventory }
func (m *mockScope) Orders() ports.OrderStore         { return m.orders }

type mockInventory struct {
	findProductFn       func(ctx context.Context, id string) (*domain.Product, error)
	writeProductStockFn func(ctx context.Context, product domain.Product, previousStock int) error
}

func (m *mockInventory) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.findProductFn(ctx, id)
}

func (m *mockInventory) WriteProductStock(ctx context.Context, product domain.Product, previousStock int) error {
	if m.writeProductStockFn != nil {
		return m.writeProductStockFn(ctx, product, previousStock)
	}
	return nil
}

type mockOrders struct {
	createOrderFn func(ctx context.Context, order domain.Order) error
}

func (m *mockOrders) CreateOrder(ctx context.Context, order domain.Order) error {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, order)
	}
	return nil
}

func scopedUnitOfWork(scope ports.Scope) *mockUnitOfWork {
	return &mockUnitOfWork{doFn: func(ctx context.Context, fn func(ctx context.Context, scope ports.Scope) error) error {
		return fn(ctx, scope)
	}}
}

func product(id string, price int64, stock int) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price), Stock: stock}
}

func newStore(t *testing.T, products ...domain.Product) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.UpsertProducts(context.Background(), products))
	return store
}

func stockOf(t *testing.T, store *memory.Store, id string) int {
	t.Helper()
	p, ok := store.Product(id)
	require.True(t, ok, "product %s not found", id)
	return p.Stock
}

func raw(pairs ...any) []validation.RawLine {
	lines := make([]validation.RawLine, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		lines = append(lines, validation.RawLine{ProductID: pairs[i], Quantity: pairs[i+1]})
	}
	return lines
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("places a pending order and decrements stock", func(t *testing.T) {
		store := newStore(t, product("p1", 20, 5))
		handler := commands.NewPlaceOrderCommandHandler(store)

		summary, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 2)})

		require.NoError(t, err)
		assert.NotEmpty(t, summary.ID)
		assert.Equal(t, "u1", summary.BuyerID)
		assert.Equal(t, domain.StatusPending, summary.Status)
		assert.True(t, summary.TotalPrice.Equal(decimal.NewFromInt(40)), "total %s", summary.TotalPrice)
		assert.Equal(t, 3, stockOf(t, store, "p1"))

		order, err := store.GetByID(ctx, summary.ID)
		require.NoError(t, err)
		assert.Nil(t, order.Description)
		assert.Len(t, order.Lines, 1)
	})

	t.Run("computes the total across lines", func(t *testing.T) {
		store := newStore(t, product("p1", 10, 5), product("p2", 5, 5))
		handler := commands.NewPlaceOrderCommandHandler(store)

		summary, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 2, "p2", 3)})

		require.NoError(t, err)
		assert.True(t, summary.TotalPrice.Equal(decimal.NewFromInt(35)), "total %s", summary.TotalPrice)
		require.Len(t, summary.Lines, 2)
		assert.Equal(t, "p1", summary.Lines[0].ProductID)
		assert.Equal(t, "p2", summary.Lines[1].ProductID)
		assert.True(t, summary.Lines[1].Price.Equal(decimal.NewFromInt(5)))
	})

	t.Run("allows taking exactly the remaining stock", func(t *testing.T) {
		store := newStore(t, product("p1", 1, 4))
		handler := commands.NewPlaceOrderCommandHandler(store)

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 4)})

		require.NoError(t, err)
		assert.Equal(t, 0, stockOf(t, store, "p1"))
	})

	t.Run("processes duplicate lines against the running stock", func(t *testing.T) {
		store := newStore(t, product("p1", 1, 3))
		handler := commands.NewPlaceOrderCommandHandler(store)

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 2, "p1", 2)})

		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 3, stockOf(t, store, "p1"))
	})

	t.Run("uses injected clock and id generator", func(t *testing.T) {
		store := newStore(t, product("p1", 1, 3))
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		handler := commands.NewPlaceOrderCommandHandler(store,
			commands.WithClock(func() time.Time { return now }),
			commands.WithIDGenerator(func() string { return "order-1" }),
		)

		summary, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 1)})
		require.NoError(t, err)
		assert.Equal(t, "order-1", summary.ID)

		order, err := store.GetByID(ctx, "order-1")
		require.NoError(t, err)
		assert.True(t, order.CreatedAt.Equal(now))
	})
}

func TestPlaceOrderRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a blank buyer before touching the store", func(t *testing.T) {
		uow := &mockUnitOfWork{doFn: func(context.Context, func(context.Context, ports.Scope) error) error {
			t.Fatal("unit of work must not be opened")
			return nil
		}}
		handler := commands.NewPlaceOrderCommandHandler(uow)

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "  ", Lines: raw("p1", 1)})

		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	validationCases := []struct {
		name  string
		lines []validation.RawLine
		want  error
	}{
		{name: "empty cart", lines: nil, want: domain.ErrEmptyOrder},
		{name: "zero quantity", lines: raw("p1", 0), want: domain.ErrInvalidQuantity},
		{name: "negative quantity", lines: raw("p1", -1), want: domain.ErrInvalidQuantity},
		{name: "fractional quantity", lines: raw("p1", 1.5), want: domain.ErrInvalidQuantity},
		{name: "non string product id", lines: raw(12, 1), want: domain.ErrInvalidProductID},
	}
	for _, tc := range validationCases {
		t.Run("rejects "+tc.name+" before touching the store", func(t *testing.T) {
			uow := &mockUnitOfWork{doFn: func(context.Context, func(context.Context, ports.Scope) error) error {
				t.Fatal("unit of work must not be opened")
				return nil
			}}
			handler := commands.NewPlaceOrderCommandHandler(uow)

			_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: tc.lines})

			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("rejects quantity above stock and leaves no trace", func(t *testing.T) {
		store := newStore(t, product("p1", 20, 5))
		handler := commands.NewPlaceOrderCommandHandler(store)

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 10)})

		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Contains(t, err.Error(), "Product p1")
		assert.Equal(t, 5, stockOf(t, store, "p1"))
		assert.Equal(t, 0, store.OrderCount())
	})

	t.Run("rolls back earlier lines when a later line fails", func(t *testing.T) {
		store := newStore(t, product("p1", 10, 5), product("p2", 5, 1))
		handler := commands.NewPlaceOrderCommandHandler(store)

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 2, "p2", 3)})

		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 5, stockOf(t, store, "p1"))
		assert.Equal(t, 1, stockOf(t, store, "p2"))
		assert.Equal(t, 0, store.OrderCount())
	})

	t.Run("reports the first failing line in cart order", func(t *testing.T) {
		store := newStore(t, product("good", 1, 5))
		handler := commands.NewPlaceOrderCommandHandler(store)

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("bad", 1, "good", 1)})

		var de *domain.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.KindProductNotFound, de.Kind)
		assert.Equal(t, "bad", de.ProductID)
		assert.Equal(t, 5, stockOf(t, store, "good"))
	})

	t.Run("maps a lost conditional write to insufficient stock", func(t *testing.T) {
		inventory := &mockInventory{
			findProductFn: func(_ context.Context, id string) (*domain.Product, error) {
				p := product(id, 1, 5)
				return &p, nil
			},
			writeProductStockFn: func(context.Context, domain.Product, int) error {
				return domain.ErrStockConflict
			},
		}
		handler := commands.NewPlaceOrderCommandHandler(scopedUnitOfWork(&mockScope{inventory: inventory, orders: &mockOrders{}}))

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 1)})

		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	})

	t.Run("wraps store errors as store failures", func(t *testing.T) {
		cause := errors.New("connection reset")
		inventory := &mockInventory{
			findProductFn: func(context.Context, string) (*domain.Product, error) { return nil, cause },
		}
		handler := commands.NewPlaceOrderCommandHandler(scopedUnitOfWork(&mockScope{inventory: inventory, orders: &mockOrders{}}))

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 1)})

		assert.ErrorIs(t, err, domain.ErrStoreFailure)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("wraps order persistence errors as store failures", func(t *testing.T) {
		inventory := &mockInventory{
			findProductFn: func(_ context.Context, id string) (*domain.Product, error) {
				p := product(id, 1, 5)
				return &p, nil
			},
		}
		orders := &mockOrders{createOrderFn: func(context.Context, domain.Order) error {
			return errors.New("insert failed")
		}}
		handler := commands.NewPlaceOrderCommandHandler(scopedUnitOfWork(&mockScope{inventory: inventory, orders: orders}))

		_, err := handler.Handle(ctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 1)})

		assert.ErrorIs(t, err, domain.ErrStoreFailure)
	})

	t.Run("aborts when the context is already cancelled", func(t *testing.T) {
		store := newStore(t, product("p1", 1, 5))
		handler := commands.NewPlaceOrderCommandHandler(store)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := handler.Handle(cctx, commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 1)})

		assert.ErrorIs(t, err, domain.ErrStoreFailure)
		assert.Equal(t, 5, stockOf(t, store, "p1"))
	})
}

func TestPlaceOrderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("never oversells the last unit", func(t *testing.T) {
		store := newStore(t, product("p1", 20, 1))
		handler := commands.NewPlaceOrderCommandHandler(store)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = handler.Handle(context.Background(), commands.PlaceOrderCommand{BuyerID: "u1", Lines: raw("p1", 1)})
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 0, stockOf(t, store, "p1"))
		assert.Equal(t, 1, store.OrderCount())
	})

	t.Run("keeps stock consistent across overlapping carts", func(t *testing.T) {
		store := newStore(t, product("p1", 1, 50), product("p2", 1, 50))
		handler := commands.NewPlaceOrderCommandHandler(store)

		var wg sync.WaitGroup
		var mu sync.Mutex
		placed := 0
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				lines := raw("p1", 2, "p2", 1)
				if i%2 == 1 {
					lines = raw("p2", 1, "p1", 2)
				}
				if _, err := handler.Handle(context.Background(), commands.PlaceOrderCommand{BuyerID: "u1", Lines: lines}); err == nil {
					mu.Lock()
					placed++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 25, placed)
		assert.Equal(t, 50-2*placed, stockOf(t, store, "p1"))
		assert.Equal(t, 50-placed, stockOf(t, store, "p2"))
		assert.Equal(t, placed, store.OrderCount())
	})
}
