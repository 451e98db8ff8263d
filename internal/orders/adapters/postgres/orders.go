package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/orderflow/internal/database"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

type orderStore struct {
	tx pgx.Tx
}

func (s *orderStore) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return domain.NewStoreFailure("create order", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO orders (id, buyer_id, description, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		order.ID,
		order.BuyerID,
		order.Description,
		order.TotalPrice,
		string(order.Status),
		order.CreatedAt,
		order.UpdatedAt,
	)
	for i, line := range order.Lines {
		batch.Queue(`
			INSERT INTO order_lines (order_id, position, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, i, line.ProductID, line.Quantity, line.Price)
	}

	results := s.tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return domain.NewStoreFailure("create order", database.ClassifyError(err))
		}
	}
	if err := results.Close(); err != nil {
		return domain.NewStoreFailure("create order", database.ClassifyError(err))
	}

	return nil
}

// OrderReader serves order queries outside placement transactions.
type OrderReader struct {
	pool *pgxpool.Pool
}

var _ ports.OrderReader = (*OrderReader)(nil)

func NewOrderReader(pool *pgxpool.Pool) *OrderReader {
	return &OrderReader{pool: pool}
}

func (r *OrderReader) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, buyer_id, description, total_price, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[order.ID]

	return &order, nil
}

func (r *OrderReader) ListByBuyer(ctx context.Context, filter ports.ListFilter) (ports.OrderPage, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE buyer_id = $1`, filter.BuyerID).Scan(&total); err != nil {
		return ports.OrderPage{}, fmt.Errorf("count orders: %w", err)
	}

	query := `
		SELECT id, buyer_id, description, total_price, status, created_at, updated_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, filter.BuyerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return ports.OrderPage{}, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	var ids []string
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return ports.OrderPage{}, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return ports.OrderPage{}, fmt.Errorf("iterate orders: %w", err)
	}

	if len(ids) > 0 {
		lines, err := r.loadLines(ctx, ids)
		if err != nil {
			return ports.OrderPage{}, err
		}
		for i := range orders {
			orders[i].Lines = lines[orders[i].ID]
		}
	}

	return ports.OrderPage{Orders: orders, Total: total}, nil
}

func (r *OrderReader) loadLines(ctx context.Context, orderIDs []string) (map[string][]domain.OrderLine, error) {
	query := `
		SELECT order_id, product_id, quantity, price
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var orderID string
		var line domain.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.Quantity, &line.Price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines[orderID] = append(lines[orderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	var status string
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.Description,
		&order.TotalPrice,
		&status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	order.Status = domain.OrderStatus(status)
	return order, err
}
