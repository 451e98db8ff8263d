package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/orderflow/internal/database"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

const rollbackTimeout = 5 * time.Second

// UnitOfWork runs workflows inside a single Postgres transaction.
type UnitOfWork struct {
	pool     *pgxpool.Pool
	isoLevel pgx.TxIsoLevel
}

type UnitOfWorkOption func(*UnitOfWork)

func WithIsolationLevel(level pgx.TxIsoLevel) UnitOfWorkOption {
	return func(u *UnitOfWork) { u.isoLevel = level }
}

func NewUnitOfWork(pool *pgxpool.Pool, opts ...UnitOfWorkOption) *UnitOfWork {
	u := &UnitOfWork{pool: pool, isoLevel: pgx.ReadCommitted}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ParseIsolationLevel accepts "read committed", "repeatable read" and
// "serializable", case-insensitively, with spaces, dashes or underscores.
func ParseIsolationLevel(s string) (pgx.TxIsoLevel, error) {
	normalized := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case "", "read committed":
		return pgx.ReadCommitted, nil
	case "repeatable read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	default:
		return "", fmt.Errorf("unsupported isolation level %q", s)
	}
}

// Do begins a transaction, runs fn and commits when fn returns nil. The
// transaction is rolled back on error, panic and cancellation.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, scope ports.Scope) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: u.isoLevel})
	if err != nil {
		return domain.NewStoreFailure("begin", database.ClassifyError(err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		_ = tx.Rollback(rbCtx)
	}()

	if err := fn(ctx, &scope{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewStoreFailure("commit", database.ClassifyError(err))
	}
	committed = true
	return nil
}

type scope struct {
	tx pgx.Tx
}

func (s *scope) Inventory() ports.InventoryStore { return &inventoryStore{tx: s.tx} }

func (s *scope) Orders() ports.OrderStore { return &orderStore{tx: s.tx} }
