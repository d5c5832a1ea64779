package api

import (
	"net/http"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AdminAdjustHandler mints or burns points on any account.
func (h *Handlers) AdminAdjustHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req domain.AdminAdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, _ := GetSubject(r.Context())
	balance, err := h.service.AdminAdjust(r.Context(), admin, accountID, req)
	if err != nil {
		h.fail(w, r, "admin_adjust", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.BalanceResponse{AccountID: accountID, Balance: balance})
}

// AdminDeleteAccountHandler soft-deletes an account.
func (h *Handlers) AdminDeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	admin, _ := GetSubject(r.Context())
	if err := h.service.DeleteAccount(r.Context(), admin, accountID); err != nil {
		h.fail(w, r, "delete_account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminGetWalletHandler returns the admin wallet account.
func (h *Handlers) AdminGetWalletHandler(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.service.GetAdminWallet(r.Context())
	if err != nil {
		h.fail(w, r, "get_admin_wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// AdminFundWalletHandler mints points into the admin wallet.
func (h *Handlers) AdminFundWalletHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, _ := GetSubject(r.Context())
	balance, err := h.service.FundAdminWallet(r.Context(), admin, req.Amount)
	if err != nil {
		h.fail(w, r, "fund_admin_wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// AdminResetWalletHandler burns the whole admin wallet balance.
func (h *Handlers) AdminResetWalletHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := GetSubject(r.Context())
	balance, err := h.service.ResetAdminWallet(r.Context(), admin)
	if err != nil {
		h.fail(w, r, "reset_admin_wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// AdminRewardLeaderboardHandler credits the current top accounts.
func (h *Handlers) AdminRewardLeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LeaderboardRewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, _ := GetSubject(r.Context())
	rewarded, err := h.service.RewardLeaderboard(r.Context(), admin, req.Top, req.Amount)
	if err != nil {
		h.fail(w, r, "reward_leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rewarded": rewarded})
}

// AdminUpdatePromotionSettingsHandler replaces the promotion cost table.
func (h *Handlers) AdminUpdatePromotionSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionSettings
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, _ := GetSubject(r.Context())
	settings, err := h.service.UpdatePromotionSettings(r.Context(), admin, req)
	if err != nil {
		h.fail(w, r, "update_promotion_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// AdminCloseTaskHandler closes any task. The escrow is refunded to the creator
// when the creator still exists.
func (h *Handlers) AdminCloseTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	admin, _ := GetSubject(r.Context())
	task, err := h.service.CloseTask(r.Context(), taskID, uuid.Nil, true)
	if err != nil {
		h.fail(w, r, "admin_close_task", err)
		return
	}
	h.log.WithFields(logrus.Fields{"component": "api", "admin": admin, "task_id": taskID}).Info("task closed by admin")
	writeJSON(w, http.StatusOK, task)
}
