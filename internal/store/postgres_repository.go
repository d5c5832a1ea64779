/**
 * @description
 * PostgreSQL implementation of the Repository interface. Reads go straight to
 * the pool; every mutation runs through WithTx so the balance row lock, the
 * balance update and the ledger insert share one transaction.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and toolkit.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `
	id, user_id, username, kind, balance,
	login_window_month, login_window_year, login_monthly_target, login_monthly_earned,
	login_last_claim_date, login_streak, created_at, updated_at, deleted_at`

// PostgresRepository is the concrete implementation of the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by a pgx pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithTx runs fn in a transaction and classifies driver errors on the way out.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classifyError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return classifyError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var month int16
	var year int32
	var streak int32
	err := row.Scan(
		&a.ID, &a.UserID, &a.Username, &a.Kind, &a.Balance,
		&month, &year, &a.DailyLogin.MonthlyTarget, &a.DailyLogin.MonthlyEarned,
		&a.DailyLogin.LastClaimDate, &streak, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	a.DailyLogin.WindowMonth = int(month)
	a.DailyLogin.WindowYear = int(year)
	a.DailyLogin.Streak = int(streak)
	return &a, nil
}

// FindAccountByID retrieves an account, including soft-deleted ones.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// FindAccountByUserID retrieves the live account owned by an identity-service user.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE user_id = $1 AND deleted_at IS NULL`
	return scanAccount(r.db.QueryRow(ctx, query, strings.TrimSpace(userID)))
}

// FindAccountByUsername performs a case-insensitive lookup of a live account.
func (r *PostgresRepository) FindAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE lower(username) = lower($1) AND deleted_at IS NULL LIMIT 1`
	return scanAccount(r.db.QueryRow(ctx, query, strings.TrimSpace(username)))
}

// TopAccounts returns live user accounts ordered by balance.
func (r *PostgresRepository) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE deleted_at IS NULL AND kind = 'user'
		ORDER BY balance DESC, id ASC
		LIMIT $1`
	rows, err := r.db.Query(ctx, query, NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// ListLedgerEntries returns one page of an account's history, newest first.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, accountID uuid.UUID, cursor *HistoryCursor, limit int) ([]domain.LedgerEntry, error) {
	limit = NormalizeLimit(limit)
	args := []any{accountID}
	where := "e.account_id = $1"
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		where += " AND (e.created_at, e.id) < ($2::timestamptz, $3::uuid)"
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT e.id, e.account_id, e.amount, e.category, e.related_task_id, t.title,
		       e.description, e.metadata::text, e.balance_after, e.created_at
		FROM ledger_entries e
		LEFT JOIN tasks t ON t.id = e.related_task_id
		WHERE %s
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $%d`, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, limit)
	for rows.Next() {
		var e domain.LedgerEntry
		var category string
		var metadata string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &category, &e.RelatedTaskID, &e.RelatedTask,
			&e.Description, &metadata, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Category = domain.Category(category)
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode ledger metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListAccountIDs pages through all account ids in ascending order.
func (r *PostgresRepository) ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM accounts WHERE id > $1 ORDER BY id ASC LIMIT $2`, after, limit)
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

// AuditAccount compares the stored balance with the ledger sum in one snapshot.
func (r *PostgresRepository) AuditAccount(ctx context.Context, accountID uuid.UUID) (LedgerAudit, error) {
	audit := LedgerAudit{AccountID: accountID}
	query := `
		SELECT a.balance, COALESCE(SUM(e.amount), 0), COUNT(e.id)
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.id, a.balance`
	err := r.db.QueryRow(ctx, query, accountID).Scan(&audit.Balance, &audit.LedgerSum, &audit.EntryCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return audit, ErrAccountNotFound
		}
		return audit, err
	}
	return audit, nil
}
