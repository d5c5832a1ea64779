/**
 * @description
 * This file defines the data access contract for the points-service. All balance
 * mutations happen through a Tx obtained from Repository.WithTx, so a balance
 * change and its ledger entry always commit together.
 *
 * @dependencies
 * - context: For managing request-scoped deadlines and cancellation.
 * - github.com/google/uuid: For handling UUIDs.
 */

package store

import (
	"context"
	"errors"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrDuplicate           = errors.New("duplicate record")
)

// Repository defines the read paths and the transactional entry point.
type Repository interface {
	// WithTx runs fn inside a single database transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (*domain.Account, error)
	ListLedgerEntries(ctx context.Context, accountID uuid.UUID, cursor *HistoryCursor, limit int) ([]domain.LedgerEntry, error)
	TopAccounts(ctx context.Context, limit int) ([]domain.Account, error)

	FindTaskByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)
	GetPromotionSettings(ctx context.Context) (domain.PromotionSettings, error)
	UpdatePromotionSettings(ctx context.Context, settings domain.PromotionSettings) (domain.PromotionSettings, error)

	ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	AuditAccount(ctx context.Context, accountID uuid.UUID) (LedgerAudit, error)
	MarkExhaustedTasks(ctx context.Context) (int64, error)
}

// Tx is the set of locked reads and writes available inside a transaction.
type Tx interface {
	LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	LockAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)
	InsertAccount(ctx context.Context, account *domain.Account) error
	SoftDeleteAccount(ctx context.Context, id uuid.UUID) error
	ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	InsertLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error
	SaveDailyLoginState(ctx context.Context, accountID uuid.UUID, state domain.DailyLoginState) error
	TopAccountIDs(ctx context.Context, limit int) ([]uuid.UUID, error)

	LockTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	InsertTask(ctx context.Context, task *domain.Task) error
	UpdateTask(ctx context.Context, task *domain.Task) error
	HasCompletion(ctx context.Context, taskID, accountID uuid.UUID) (bool, error)
	InsertCompletion(ctx context.Context, taskID, accountID uuid.UUID, payout int64) error
}

// LedgerAudit compares a stored balance against the sum of its ledger entries.
type LedgerAudit struct {
	AccountID  uuid.UUID
	Balance    int64
	LedgerSum  int64
	EntryCount int64
}

// Drift returns balance minus the ledger sum; zero means consistent.
func (a LedgerAudit) Drift() int64 {
	return a.Balance - a.LedgerSum
}
