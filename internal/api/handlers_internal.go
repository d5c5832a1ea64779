package api

import (
	"net/http"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RegisterAccountInternalHandler creates the points account for a new user.
// It is the synchronous twin of the user.registered event consumer.
func (h *Handlers) RegisterAccountInternalHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, created, err := h.service.RegisterAccount(r.Context(), req)
	if err != nil {
		h.fail(w, r, "register_account", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, account)
}

// GetBalanceInternalHandler returns the balance of the account owned by userID.
func (h *Handlers) GetBalanceInternalHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "userID is required")
		return
	}
	account, err := h.service.GetAccountByUserID(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "get_balance_internal", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.BalanceResponse{AccountID: account.ID, Balance: account.Balance})
}
