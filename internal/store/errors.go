package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgLockNotAvailable     = "55P03"

	balanceCheckConstraint = "accounts_balance_non_negative"
)

// classifyError maps PostgreSQL failures onto the package sentinels while keeping
// the original error in the chain.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	case pgUniqueViolation:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case pgCheckViolation:
		if pgErr.ConstraintName == balanceCheckConstraint {
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}
	return err
}
