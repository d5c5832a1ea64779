/**
 * @description
 * Core ledger models for the points-service. Every balance change in the system
 * is represented by exactly one LedgerEntry written in the same database
 * transaction as the balance update on the owning Account.
 *
 * @notes
 * - Amounts are whole points stored as `int64`. Positive amounts are credits,
 *   negative amounts are debits.
 * - Entries are append-only. The sum of an account's entries equals its balance.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of reasons a balance may change.
type Category string

const (
	CategoryDailyLogin     Category = "daily-login"
	CategoryStreakBonus    Category = "streak-bonus"
	CategoryTaskFund       Category = "task-fund"
	CategoryTaskCompletion Category = "task-completion"
	CategoryTaskPromotion  Category = "task-promotion"
	CategoryTaskRefund     Category = "task-refund"
	CategoryTransferIn     Category = "transfer-in"
	CategoryTransferOut    Category = "transfer-out"
	CategoryRedeem         Category = "redeem"
	CategoryReferralBonus  Category = "referral-bonus"
	CategoryAdminAdjust    Category = "admin-adjust"
)

var knownCategories = map[Category]struct{}{
	CategoryDailyLogin:     {},
	CategoryStreakBonus:    {},
	CategoryTaskFund:       {},
	CategoryTaskCompletion: {},
	CategoryTaskPromotion:  {},
	CategoryTaskRefund:     {},
	CategoryTransferIn:     {},
	CategoryTransferOut:    {},
	CategoryRedeem:         {},
	CategoryReferralBonus:  {},
	CategoryAdminAdjust:    {},
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// LedgerEntry is one immutable audit record of a balance change.
// This struct maps directly to the `ledger_entries` table.
type LedgerEntry struct {
	ID            uuid.UUID              `json:"id"`
	AccountID     uuid.UUID              `json:"account_id"`
	Amount        int64                  `json:"amount"`
	Category      Category               `json:"category"`
	RelatedTaskID *uuid.UUID             `json:"related_task_id,omitempty"`
	RelatedTask   *string                `json:"related_task_title,omitempty"`
	Description   string                 `json:"description"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	BalanceAfter  int64                  `json:"balance_after"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Delta describes a requested balance change before it is applied.
type Delta struct {
	AccountID     uuid.UUID
	Amount        int64
	Category      Category
	RelatedTaskID *uuid.UUID
	Description   string
	Metadata      map[string]interface{}
}

// DeltaResult is returned by the ledger primitive once a delta is applied.
type DeltaResult struct {
	NewBalance int64     `json:"new_balance"`
	EntryID    uuid.UUID `json:"entry_id"`
}

// HistoryPage is one page of an account's ledger, newest first.
type HistoryPage struct {
	Entries    []LedgerEntry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// BalanceUpdate is delivered to the notification sink after a committed mutation.
type BalanceUpdate struct {
	AccountID  uuid.UUID `json:"account_id"`
	UserID     string    `json:"user_id"`
	Balance    int64     `json:"balance"`
	Category   Category  `json:"category"`
	EntryID    uuid.UUID `json:"entry_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TransferRequest is the DTO for incoming point transfer API requests.
type TransferRequest struct {
	ToAccountID *uuid.UUID `json:"to_account_id,omitempty"`
	ToUsername  string     `json:"to_username,omitempty"`
	Amount      int64      `json:"amount"`
}

// TransferResult is returned to the sender after a transfer commits.
type TransferResult struct {
	SenderBalance int64     `json:"sender_balance"`
	ReceiverID    uuid.UUID `json:"receiver_id"`
	Amount        int64     `json:"amount"`
}

// AmountRequest carries a single amount, used by redeem and admin wallet funding.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// AdminAdjustRequest is the admin DTO for minting or burning points on an account.
type AdminAdjustRequest struct {
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
	Correction bool   `json:"correction"`
}

// LeaderboardRewardRequest credits the top accounts a fixed amount each.
type LeaderboardRewardRequest struct {
	Top    int   `json:"top"`
	Amount int64 `json:"amount"`
}

// BalanceResponse is the generic shape returned by balance-changing endpoints.
type BalanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"`
}
