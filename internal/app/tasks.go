package app

import (
	"context"
	"errors"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FundTask debits the creator for the full escrow and creates the task.
func (s *Service) FundTask(ctx context.Context, creatorID uuid.UUID, spec domain.TaskSpec) (*domain.Task, error) {
	spec = spec.Normalize()
	total, ok := spec.TotalFund()
	if !ok {
		return nil, ErrInvalidAmount
	}
	if spec.URL == "" {
		return nil, ErrInvalidTaskSpec
	}
	if err := s.enforceRateLimit(ctx, "fund_task", creatorID); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := s.mutate(ctx, "fund_task", func(m *mutation) error {
		task = &domain.Task{
			ID:                  uuid.New(),
			CreatorID:           creatorID,
			Title:               spec.Title,
			URL:                 spec.URL,
			Platform:            spec.Platform,
			Action:              spec.Action,
			DurationSeconds:     spec.DurationSeconds,
			PointsPerCompletion: spec.PointsPerCompletion,
			MaxCompletions:      spec.MaxCompletions,
			Fund:                total,
			Status:              domain.TaskStatusActive,
			CreatedAt:           m.now,
			UpdatedAt:           m.now,
		}

		creator, err := m.tx.LockAccount(ctx, creatorID)
		if err != nil {
			return err
		}
		if creator.Balance < total {
			return ErrInsufficientBalance
		}

		// The ledger entry references the task, so the row must exist first.
		if err := m.tx.InsertTask(ctx, task); err != nil {
			return err
		}
		_, err = s.applyDelta(ctx, m, domain.Delta{
			AccountID:     creatorID,
			Amount:        -total,
			Category:      domain.CategoryTaskFund,
			RelatedTaskID: &task.ID,
			Description:   "Task escrow funded",
			Metadata: map[string]interface{}{
				"points_per_completion": spec.PointsPerCompletion,
				"max_completions":       spec.MaxCompletions,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"component":  "tasks",
		"task_id":    task.ID,
		"creator_id": creatorID,
		"fund":       task.Fund,
	}).Info("task funded")
	return task, nil
}

// CompleteTask pays one completion out of the task's escrow. A participant who
// already completed the task gets an already_completed result with no payout.
func (s *Service) CompleteTask(ctx context.Context, taskID, participantID uuid.UUID) (*domain.CompletionResult, error) {
	if err := s.enforceRateLimit(ctx, "complete_task", participantID); err != nil {
		return nil, err
	}

	var result domain.CompletionResult
	err := s.mutate(ctx, "complete_task", func(m *mutation) error {
		task, err := m.tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		result = domain.CompletionResult{TaskID: task.ID, RemainingFund: task.Fund}

		done, err := m.tx.HasCompletion(ctx, task.ID, participantID)
		if err != nil {
			return err
		}
		if done {
			result.Status = domain.CompletionAlreadyCompleted
			participant, err := m.tx.LockAccount(ctx, participantID)
			if err != nil {
				return err
			}
			result.Balance = participant.Balance
			return nil
		}
		if !task.CanPayOut() {
			return ErrFundExhausted
		}

		payout := task.PointsPerCompletion
		task.Fund -= payout
		task.CompletionsCount++
		if task.Fund < task.PointsPerCompletion {
			task.Status = domain.TaskStatusExhausted
		}
		if err := m.tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if err := m.tx.InsertCompletion(ctx, task.ID, participantID, payout); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// A concurrent completion won the race; the retry reports it as done.
				return store.ErrConcurrencyConflict
			}
			return err
		}

		credited, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:     participantID,
			Amount:        payout,
			Category:      domain.CategoryTaskCompletion,
			RelatedTaskID: &task.ID,
			Description:   "Task completion reward",
			Metadata: map[string]interface{}{
				"platform": task.Platform,
				"action":   task.Action,
			},
		})
		if err != nil {
			return err
		}

		result.Status = domain.CompletionPaid
		result.Payout = payout
		result.RemainingFund = task.Fund
		result.Balance = credited.NewBalance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PromoteTask charges the creator the configured promotion cost and marks the
// task as promoted. Promoting an already promoted task changes nothing.
func (s *Service) PromoteTask(ctx context.Context, taskID, requesterID uuid.UUID) (*domain.Task, error) {
	settings, err := s.repo.GetPromotionSettings(ctx)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.mutate(ctx, "promote_task", func(m *mutation) error {
		task, err = m.tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.CreatorID != requesterID {
			return ErrForbidden
		}
		if task.Promoted {
			return nil
		}
		if task.Status == domain.TaskStatusClosed {
			return ErrFundExhausted
		}

		if cost := settings.CostFor(*task); cost > 0 {
			if _, err := s.applyDelta(ctx, m, domain.Delta{
				AccountID:     requesterID,
				Amount:        -cost,
				Category:      domain.CategoryTaskPromotion,
				RelatedTaskID: &task.ID,
				Description:   "Task promotion",
				Metadata:      map[string]interface{}{"cost": cost},
			}); err != nil {
				return err
			}
		}

		promotedAt := m.now
		task.Promoted = true
		task.PromotedAt = &promotedAt
		return m.tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CloseTask stops a task and refunds its unspent escrow to the creator. The
// remaining completions are cancelled so the escrow stays balanced.
func (s *Service) CloseTask(ctx context.Context, taskID, requesterID uuid.UUID, isAdmin bool) (*domain.Task, error) {
	var task *domain.Task
	var refunded int64
	err := s.mutate(ctx, "close_task", func(m *mutation) error {
		var err error
		refunded = 0
		task, err = m.tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !isAdmin && task.CreatorID != requesterID {
			return ErrForbidden
		}
		if task.Status == domain.TaskStatusClosed {
			return nil
		}

		refund := task.Fund
		task.MaxCompletions = task.CompletionsCount
		task.Fund = 0
		task.Status = domain.TaskStatusClosed
		if err := m.tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if refund == 0 {
			return nil
		}

		if _, err := m.tx.LockAccount(ctx, task.CreatorID); err != nil {
			if errors.Is(err, store.ErrAccountNotFound) && isAdmin {
				s.log.WithFields(logrus.Fields{
					"component":  "tasks",
					"task_id":    task.ID,
					"creator_id": task.CreatorID,
					"forfeited":  refund,
				}).Warn("task creator no longer exists; escrow forfeited")
				return nil
			}
			return err
		}
		if _, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:     task.CreatorID,
			Amount:        refund,
			Category:      domain.CategoryTaskRefund,
			RelatedTaskID: &task.ID,
			Description:   "Unspent task escrow returned",
			Metadata:      map[string]interface{}{"closed_by_admin": isAdmin},
		}); err != nil {
			return err
		}
		refunded = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"component": "tasks",
		"task_id":   taskID,
		"refunded":  refunded,
		"admin":     isAdmin,
	}).Info("task closed")
	return task, nil
}

// GetTask returns a single task.
func (s *Service) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.repo.FindTaskByID(ctx, taskID)
}

// ListTasks returns tasks matching filter, promoted first.
func (s *Service) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	filter.Limit = store.NormalizeLimit(filter.Limit)
	return s.repo.ListTasks(ctx, filter)
}

func (s *Service) GetPromotionSettings(ctx context.Context) (domain.PromotionSettings, error) {
	return s.repo.GetPromotionSettings(ctx)
}

func (s *Service) UpdatePromotionSettings(ctx context.Context, adminSubject string, settings domain.PromotionSettings) (domain.PromotionSettings, error) {
	if !settings.Validate() {
		return settings, ErrInvalidAmount
	}
	updated, err := s.repo.UpdatePromotionSettings(ctx, settings)
	if err != nil {
		return updated, err
	}
	s.log.WithFields(logrus.Fields{
		"component":   "admin",
		"admin":       adminSubject,
		"global_cost": updated.GlobalCost,
		"updated_at":  updated.UpdatedAt.Format(time.RFC3339),
	}).Info("promotion settings updated")
	return updated, nil
}
