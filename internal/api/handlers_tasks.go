package api

import (
	"net/http"
	"strings"

	"github.com/engagely/points-service/internal/domain"
)

// ListTasksHandler lists tasks, promoted first.
func (h *Handlers) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
		return
	}
	q := r.URL.Query()
	filter := domain.TaskFilter{
		Platform:     strings.ToLower(strings.TrimSpace(q.Get("platform"))),
		Action:       strings.ToLower(strings.TrimSpace(q.Get("action"))),
		PromotedOnly: q.Get("promoted") == "true",
		ActiveOnly:   q.Get("include_inactive") != "true",
		Limit:        limit,
	}
	tasks, err := h.service.ListTasks(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list_tasks", err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// CreateTaskHandler funds a new task from the caller's balance.
func (h *Handlers) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	var spec domain.TaskSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	task, err := h.service.FundTask(r.Context(), account.ID, spec)
	if err != nil {
		h.fail(w, r, "fund_task", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// GetTaskHandler returns one task.
func (h *Handlers) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		h.fail(w, r, "get_task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CompleteTaskHandler pays the caller for completing a task. Repeating a
// completion returns 200 with status already_completed.
func (h *Handlers) CompleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.service.CompleteTask(r.Context(), taskID, account.ID)
	if err != nil {
		h.fail(w, r, "complete_task", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PromoteTaskHandler charges the creator to list the task first.
func (h *Handlers) PromoteTaskHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.service.PromoteTask(r.Context(), taskID, account.ID)
	if err != nil {
		h.fail(w, r, "promote_task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CloseTaskHandler closes the caller's task and refunds the unspent escrow.
func (h *Handlers) CloseTaskHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.service.CloseTask(r.Context(), taskID, account.ID, false)
	if err != nil {
		h.fail(w, r, "close_task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetPromotionSettingsHandler returns the current promotion costs.
func (h *Handlers) GetPromotionSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetPromotionSettings(r.Context())
	if err != nil {
		h.fail(w, r, "get_promotion_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
