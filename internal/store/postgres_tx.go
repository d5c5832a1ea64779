package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// pgTx implements Tx on top of a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

// LockAccount reads a live account and holds its row lock until the transaction ends.
func (t *pgTx) LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanAccount(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTx) LockAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE user_id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanAccount(t.tx.QueryRow(ctx, query, userID))
}

// InsertAccount creates an account with a zero balance. A second insert for the
// same user returns ErrDuplicate.
func (t *pgTx) InsertAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, username, kind, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (user_id) DO NOTHING`
	tag, err := t.tx.Exec(ctx, query, account.ID, account.UserID, account.Username, account.Kind, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (t *pgTx) SoftDeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ApplyBalanceDelta adds amount to the balance. The WHERE guard refuses any update
// that would leave the balance negative.
func (t *pgTx) ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND balance + $1 >= 0
		RETURNING balance`
	var balance int64
	err := t.tx.QueryRow(ctx, query, amount, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if existsErr := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND deleted_at IS NULL)`, accountID).Scan(&exists); existsErr != nil {
				return 0, existsErr
			}
			if !exists {
				return 0, ErrAccountNotFound
			}
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	metadata := "{}"
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode ledger metadata: %w", err)
		}
		metadata = string(raw)
	}
	query := `
		INSERT INTO ledger_entries (
			id, account_id, amount, category, related_task_id,
			description, metadata, balance_after, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`
	_, err := t.tx.Exec(ctx, query,
		entry.ID, entry.AccountID, entry.Amount, string(entry.Category), entry.RelatedTaskID,
		entry.Description, metadata, entry.BalanceAfter, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) SaveDailyLoginState(ctx context.Context, accountID uuid.UUID, state domain.DailyLoginState) error {
	var lastClaim *string
	if state.LastClaimDate != nil {
		formatted := state.LastClaimDate.Format(time.DateOnly)
		lastClaim = &formatted
	}
	query := `
		UPDATE accounts
		SET login_window_month = $1,
		    login_window_year = $2,
		    login_monthly_target = $3,
		    login_monthly_earned = $4,
		    login_last_claim_date = $5::date,
		    login_streak = $6,
		    updated_at = NOW()
		WHERE id = $7`
	_, err := t.tx.Exec(ctx, query,
		state.WindowMonth, state.WindowYear, state.MonthlyTarget, state.MonthlyEarned,
		lastClaim, state.Streak, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to save daily login state: %w", err)
	}
	return nil
}

// TopAccountIDs returns the current leaders; callers lock them with LockAccount.
func (t *pgTx) TopAccountIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM accounts
		WHERE deleted_at IS NULL AND kind = 'user'
		ORDER BY balance DESC, id ASC
		LIMIT $1`, NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
