package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

var (
	// ErrUniqueViolation marks an insert that collided with an existing key.
	ErrUniqueViolation = errors.New("unique constraint violated")

	// ErrCheckViolation marks a write rejected by a table check constraint.
	ErrCheckViolation = errors.New("check constraint violated")
)

// ClassifyError attaches a sentinel to err according to its Postgres error
// code. Contention codes map to domain.ErrStoreConflict. Errors without a
// recognized code are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrStoreConflict, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: %w", ErrCheckViolation, err)
	default:
		return err
	}
}
