/**
 * @description
 * Task escrow models. A task's fund is debited from its creator up front and paid
 * out per completion, so a task can never promise more points than it holds.
 */

package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusActive    = "active"
	TaskStatusExhausted = "exhausted"
	TaskStatusClosed    = "closed"
)

// CompletionStatus is the outcome of a completion request.
type CompletionStatus string

const (
	CompletionPaid             CompletionStatus = "paid"
	CompletionAlreadyCompleted CompletionStatus = "already_completed"
)

// Task is a sponsored action backed by an escrow fund.
// This struct maps directly to the `tasks` table.
type Task struct {
	ID                  uuid.UUID  `json:"id"`
	CreatorID           uuid.UUID  `json:"creator_id"`
	Title               string     `json:"title"`
	URL                 string     `json:"url"`
	Platform            string     `json:"platform"`
	Action              string     `json:"action"`
	DurationSeconds     int        `json:"duration_seconds"`
	PointsPerCompletion int64      `json:"points_per_completion"`
	MaxCompletions      int64      `json:"max_completions"`
	CompletionsCount    int64      `json:"completions_count"`
	Fund                int64      `json:"fund"`
	Status              string     `json:"status"`
	Promoted            bool       `json:"promoted"`
	PromotedAt          *time.Time `json:"promoted_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CanPayOut reports whether the fund covers another completion.
func (t Task) CanPayOut() bool {
	return t.Status != TaskStatusClosed &&
		t.CompletionsCount < t.MaxCompletions &&
		t.Fund >= t.PointsPerCompletion
}

// EscrowBalanced reports whether fund + paid out equals the amount originally funded.
func (t Task) EscrowBalanced() bool {
	return t.Fund+t.PointsPerCompletion*t.CompletionsCount == t.PointsPerCompletion*t.MaxCompletions
}

// TaskSpec is the DTO for funding a new task.
type TaskSpec struct {
	Title               string `json:"title"`
	URL                 string `json:"url"`
	Platform            string `json:"platform"`
	Action              string `json:"action"`
	DurationSeconds     int    `json:"duration_seconds"`
	PointsPerCompletion int64  `json:"points_per_completion"`
	MaxCompletions      int64  `json:"max_completions"`
}

// TotalFund returns pointsPerCompletion * maxCompletions, or false when the
// inputs are non-positive or the product overflows.
func (s TaskSpec) TotalFund() (int64, bool) {
	if s.PointsPerCompletion <= 0 || s.MaxCompletions <= 0 {
		return 0, false
	}
	if s.PointsPerCompletion > math.MaxInt64/s.MaxCompletions {
		return 0, false
	}
	return s.PointsPerCompletion * s.MaxCompletions, true
}

// Normalize trims free-text fields and lowercases the platform and action.
func (s TaskSpec) Normalize() TaskSpec {
	s.Title = strings.TrimSpace(s.Title)
	s.URL = strings.TrimSpace(s.URL)
	s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))
	s.Action = strings.ToLower(strings.TrimSpace(s.Action))
	if s.Platform == "" {
		s.Platform = "other"
	}
	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}
	return s
}

// CompletionResult is returned by a task completion.
type CompletionResult struct {
	TaskID        uuid.UUID        `json:"task_id"`
	Status        CompletionStatus `json:"status"`
	Payout        int64            `json:"payout"`
	RemainingFund int64            `json:"remaining_fund"`
	Balance       int64            `json:"balance"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Platform     string
	Action       string
	PromotedOnly bool
	ActiveOnly   bool
	Limit        int
}

// PromotionSettings holds the point cost of promoting a task.
type PromotionSettings struct {
	GlobalCost    int64            `json:"global_cost"`
	PlatformCosts map[string]int64 `json:"platform_costs"`
	ActionCosts   map[string]int64 `json:"action_costs"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// DefaultPromotionSettings returns the costs used before an admin changes them.
func DefaultPromotionSettings() PromotionSettings {
	return PromotionSettings{
		GlobalCost: 50,
		PlatformCosts: map[string]int64{
			"youtube": 50, "tiktok": 50, "facebook": 50, "instagram": 50, "twitter": 50,
		},
		ActionCosts: map[string]int64{
			"like": 20, "share": 20, "comment": 20, "follow": 20,
		},
	}
}

// CostFor resolves the promotion cost of a task: action cost, then platform cost,
// then the global cost.
func (p PromotionSettings) CostFor(task Task) int64 {
	if cost, ok := p.ActionCosts[task.Action]; ok && cost > 0 {
		return cost
	}
	if cost, ok := p.PlatformCosts[task.Platform]; ok && cost > 0 {
		return cost
	}
	return p.GlobalCost
}

// Validate rejects negative costs.
func (p PromotionSettings) Validate() bool {
	if p.GlobalCost < 0 {
		return false
	}
	for _, c := range p.PlatformCosts {
		if c < 0 {
			return false
		}
	}
	for _, c := range p.ActionCosts {
		if c < 0 {
			return false
		}
	}
	return true
}
