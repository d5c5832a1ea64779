package app

import (
	"errors"
	"fmt"

	"github.com/engagely/points-service/internal/store"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive whole number of points")
	ErrSelfTransfer    = errors.New("cannot transfer points to yourself")
	ErrFundExhausted   = errors.New("task fund cannot cover another completion")
	ErrUnavailable     = errors.New("points ledger temporarily unavailable")
	ErrForbidden       = errors.New("operation not permitted for this account")
	ErrInvalidTaskSpec = errors.New("invalid task specification")
	ErrReasonRequired  = errors.New("a reason is required for admin adjustments")
	ErrInvalidCategory = errors.New("unknown ledger category")
	ErrRateLimited     = errors.New("too many requests")
	ErrInvalidAccount  = errors.New("user_id and username are required")

	ErrInsufficientBalance = store.ErrInsufficientFunds
	ErrAccountNotFound     = store.ErrAccountNotFound
	ErrTaskNotFound        = store.ErrTaskNotFound
	ErrInvalidCursor       = store.ErrInvalidCursor
)

// RateLimitError carries the retry hint for a rejected request.
type RateLimitError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s; retry after %ds", e.Scope, e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// errorKind labels an error for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidTaskSpec), errors.Is(err, ErrReasonRequired):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAccount):
		return "invalid_account"
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTaskNotFound):
		return "not_found"
	case errors.Is(err, ErrFundExhausted):
		return "fund_exhausted"
	case errors.Is(err, ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
