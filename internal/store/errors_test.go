package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: ErrConcurrencyConflict},
		{name: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), want: ErrConcurrencyConflict},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: ErrDuplicate},
		{name: "balance check", err: &pgconn.PgError{Code: "23514", ConstraintName: "accounts_balance_non_negative"}, want: ErrInsufficientFunds},
		{name: "sentinel passes through", err: ErrTaskNotFound, want: ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError_OtherCheckViolationUnchanged(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "tasks_escrow_conserved"}
	got := classifyError(pgErr)
	if errors.Is(got, ErrInsufficientFunds) {
		t.Fatal("escrow constraint must not be reported as insufficient funds")
	}
	if got != error(pgErr) {
		t.Fatalf("expected original error, got %v", got)
	}
	if classifyError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestLedgerAuditDrift(t *testing.T) {
	if d := (LedgerAudit{Balance: 120, LedgerSum: 100}).Drift(); d != 20 {
		t.Fatalf("expected drift 20, got %d", d)
	}
}
