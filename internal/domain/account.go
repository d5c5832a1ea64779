package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AccountKindUser   = "user"
	AccountKindSystem = "system"
)

// Account is a user's point balance plus its daily-login accrual state.
// This struct maps directly to the `accounts` table.
type Account struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Kind       string          `json:"kind"`
	Balance    int64           `json:"balance"`
	DailyLogin DailyLoginState `json:"daily_login"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

// Active reports whether the account can still be mutated.
func (a Account) Active() bool {
	return a.DeletedAt == nil
}

// RegisterAccountRequest is sent by the identity service when a user signs up.
type RegisterAccountRequest struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	ReferrerUserID string `json:"referrer_user_id,omitempty"`
}

// Wallet is the account view returned to its owner.
type Wallet struct {
	Account Account     `json:"account"`
	History HistoryPage `json:"history"`
}

// LeaderboardEntry is one ranked row of the points leaderboard.
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Balance   int64     `json:"balance"`
}
