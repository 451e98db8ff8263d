package ports

import (
	"context"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// UnitOfWork runs a workflow inside one atomic scope. It commits when the
// workflow returns nil and rolls back otherwise, returning the workflow's
// error unchanged. The scope is released on every exit path.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, scope Scope) error) error
}

// Scope is the handle of an open unit of work. Stores obtained from it read
// and write through that unit of work only.
type Scope interface {
	Inventory() InventoryStore
	Orders() OrderStore
}

// InventoryStore reads products with lock intent and writes stock conditionally.
type InventoryStore interface {
	// FindProduct returns a domain ProductNotFound error when id is unknown.
	FindProduct(ctx context.Context, id string) (*domain.Product, error)

	// WriteProductStock stores product.Stock only if the stored stock still
	// equals previousStock. Otherwise it returns domain.ErrStockConflict.
	WriteProductStock(ctx context.Context, product domain.Product, previousStock int) error
}

// OrderStore persists a completed order.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) error
}

// Catalog is the catalog-mutation path. It runs outside placement scopes.
type Catalog interface {
	UpsertProducts(ctx context.Context, products []domain.Product) error
}
