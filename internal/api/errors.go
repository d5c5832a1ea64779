package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/engagely/points-service/internal/app"
)

var errAccountNotFound = app.ErrAccountNotFound

// mapLedgerError translates a service error into a status, a stable code and a
// client-safe message.
func mapLedgerError(err error) (int, string, string) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount", err.Error()
	case errors.Is(err, app.ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_cursor", err.Error()
	case errors.Is(err, app.ErrSelfTransfer):
		return http.StatusBadRequest, "self_transfer", err.Error()
	case errors.Is(err, app.ErrInvalidTaskSpec), errors.Is(err, app.ErrReasonRequired),
		errors.Is(err, app.ErrInvalidAccount), errors.Is(err, app.ErrInvalidCategory):
		return http.StatusBadRequest, "validation_failed", err.Error()
	case errors.Is(err, app.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found", "Account not found"
	case errors.Is(err, app.ErrTaskNotFound):
		return http.StatusNotFound, "task_not_found", "Task not found"
	case errors.Is(err, app.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance", "Insufficient balance"
	case errors.Is(err, app.ErrFundExhausted):
		return http.StatusConflict, "fund_exhausted", err.Error()
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly."
	case errors.Is(err, app.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "Points are temporarily unavailable. Please retry."
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// writeServiceError writes the mapped error and the Retry-After hint for
// rate-limited and unavailable responses.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code, message := mapLedgerError(err)
	var rle *app.RateLimitError
	switch {
	case errors.As(err, &rle) && rle.RetryAfterSeconds > 0:
		w.Header().Set("Retry-After", strconv.Itoa(rle.RetryAfterSeconds))
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, message)
}
