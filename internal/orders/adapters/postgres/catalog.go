package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// Catalog writes products outside placement transactions.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// UpsertProducts creates or replaces every product in a single transaction.
func (c *Catalog) UpsertProducts(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO products (id, name, price, stock)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    stock = EXCLUDED.stock,
		    updated_at = NOW()
	`

	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		for _, p := range products {
			if _, err := tx.Exec(ctx, query, p.ID, p.Name, p.Price, p.Stock); err != nil {
				return fmt.Errorf("upsert product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
