/**
 * @description
 * This file contains the HTTP handlers for the points-service wallet endpoints.
 * Handlers parse requests, call the points service and write JSON responses.
 *
 * @dependencies
 * - internal/app, internal/domain: Service contract and models.
 * - github.com/sirupsen/logrus: Structured logging of unexpected failures.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// PointsService is the application surface the HTTP layer depends on.
type PointsService interface {
	AccountResolver
	RegisterAccount(ctx context.Context, req domain.RegisterAccountRequest) (*domain.Account, bool, error)
	ResolveAccountByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetWallet(ctx context.Context, accountID uuid.UUID) (*domain.Wallet, error)
	GetHistory(ctx context.Context, accountID uuid.UUID, cursor string, limit int) (*domain.HistoryPage, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)

	TransferPoints(ctx context.Context, senderID, receiverID uuid.UUID, amount int64) (*domain.TransferResult, error)
	RedeemPoints(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	ClaimDailyLogin(ctx context.Context, accountID uuid.UUID) (*domain.DailyLoginResult, error)

	FundTask(ctx context.Context, creatorID uuid.UUID, spec domain.TaskSpec) (*domain.Task, error)
	CompleteTask(ctx context.Context, taskID, participantID uuid.UUID) (*domain.CompletionResult, error)
	PromoteTask(ctx context.Context, taskID, requesterID uuid.UUID) (*domain.Task, error)
	CloseTask(ctx context.Context, taskID, requesterID uuid.UUID, isAdmin bool) (*domain.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)
	GetPromotionSettings(ctx context.Context) (domain.PromotionSettings, error)
	UpdatePromotionSettings(ctx context.Context, adminSubject string, settings domain.PromotionSettings) (domain.PromotionSettings, error)

	AdminAdjust(ctx context.Context, adminSubject string, accountID uuid.UUID, req domain.AdminAdjustRequest) (int64, error)
	DeleteAccount(ctx context.Context, adminSubject string, accountID uuid.UUID) error
	GetAdminWallet(ctx context.Context) (*domain.Account, error)
	FundAdminWallet(ctx context.Context, adminSubject string, amount int64) (int64, error)
	ResetAdminWallet(ctx context.Context, adminSubject string) (int64, error)
	RewardLeaderboard(ctx context.Context, adminSubject string, top int, amount int64) ([]domain.LeaderboardEntry, error)
}

// Handlers holds the points service that handlers will use.
type Handlers struct {
	service PointsService
	log     *logrus.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service PointsService, log *logrus.Logger) *Handlers {
	return &Handlers{service: service, log: log}
}

// GetWalletHandler returns the caller's balance and first page of history.
func (h *Handlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.GetWallet(r.Context(), account.ID)
	if err != nil {
		h.fail(w, r, "get_wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// GetHistoryHandler returns one page of the caller's ledger.
func (h *Handlers) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
		return
	}
	page, err := h.service.GetHistory(r.Context(), account.ID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.fail(w, r, "get_history", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// TransferHandler moves points to another account, addressed by id or username.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	var req domain.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var receiverID uuid.UUID
	switch {
	case req.ToAccountID != nil:
		receiverID = *req.ToAccountID
	case strings.TrimSpace(req.ToUsername) != "":
		receiver, err := h.service.ResolveAccountByUsername(r.Context(), strings.TrimPrefix(strings.TrimSpace(req.ToUsername), "@"))
		if err != nil {
			h.fail(w, r, "transfer", err)
			return
		}
		receiverID = receiver.ID
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "to_account_id or to_username is required")
		return
	}

	result, err := h.service.TransferPoints(r.Context(), account.ID, receiverID, req.Amount)
	if err != nil {
		h.fail(w, r, "transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RedeemHandler burns points from the caller's balance.
func (h *Handlers) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	var req domain.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	balance, err := h.service.RedeemPoints(r.Context(), account.ID, req.Amount)
	if err != nil {
		h.fail(w, r, "redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.BalanceResponse{AccountID: account.ID, Balance: balance})
}

// ClaimDailyLoginHandler credits today's daily-login reward.
func (h *Handlers) ClaimDailyLoginHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	result, err := h.service.ClaimDailyLogin(r.Context(), account.ID)
	if err != nil {
		h.fail(w, r, "daily_login", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// LeaderboardHandler lists the top balances.
func (h *Handlers) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
		return
	}
	board, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": board})
}

func (h *Handlers) callerAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	account, ok := GetAccount(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not resolve account from token")
		return nil, false
	}
	return account, true
}

// fail maps err to a response and logs anything that is not a client error.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, _, _ := mapLedgerError(err)
	if status >= http.StatusInternalServerError {
		h.log.WithFields(logrus.Fields{
			"component": "api",
			"operation": operation,
			"path":      r.URL.Path,
			"status":    status,
			"error":     err,
		}).Error("request failed")
	}
	writeServiceError(w, err)
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
