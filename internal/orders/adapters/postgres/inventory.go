package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dejobratic/orderflow/internal/database"
	"github.com/dejobratic/orderflow/internal/orders/domain"
)

type inventoryStore struct {
	tx pgx.Tx
}

// FindProduct reads the product and locks its row until the transaction ends.
func (s *inventoryStore) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, price, stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`

	var p domain.Product
	err := s.tx.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewProductNotFoundError(id)
		}
		return nil, domain.NewStoreFailure("find product", database.ClassifyError(err))
	}

	return &p, nil
}

func (s *inventoryStore) WriteProductStock(ctx context.Context, product domain.Product, previousStock int) error {
	query := `
		UPDATE products
		SET stock = $2, updated_at = NOW()
		WHERE id = $1 AND stock = $3 AND $2 >= 0
	`

	result, err := s.tx.Exec(ctx, query, product.ID, product.Stock, previousStock)
	if err != nil {
		err = database.ClassifyError(err)
		if errors.Is(err, database.ErrCheckViolation) {
			return domain.ErrStockConflict
		}
		return domain.NewStoreFailure("write product stock", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrStockConflict
	}

	return nil
}
