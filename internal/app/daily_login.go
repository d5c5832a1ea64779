package app

import (
	"context"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClaimDailyLogin credits today's share of the monthly target. A second claim on
// the same calendar day, or a claim after the target is met, returns a zero
// result instead of an error.
func (s *Service) ClaimDailyLogin(ctx context.Context, accountID uuid.UUID) (*domain.DailyLoginResult, error) {
	if err := s.enforceRateLimit(ctx, "daily_login", accountID); err != nil {
		return nil, err
	}

	var result domain.DailyLoginResult
	err := s.mutate(ctx, "daily_login", func(m *mutation) error {
		account, err := m.tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}

		today := domain.CalendarDate(m.now, s.settings.Location)
		outcome := account.DailyLogin.Claim(today, func() int64 {
			return s.drawTarget(s.settings.MinMonthlyTarget, s.settings.MaxMonthlyTarget)
		})

		result = domain.DailyLoginResult{
			Reason:        outcome.Reason,
			Balance:       account.Balance,
			Streak:        outcome.State.Streak,
			MonthlyTarget: outcome.State.MonthlyTarget,
			MonthlyEarned: outcome.State.MonthlyEarned,
		}

		if outcome.Reason != domain.DailyLoginClaimed {
			if outcome.WindowOpened {
				return m.tx.SaveDailyLoginState(ctx, accountID, outcome.State)
			}
			return nil
		}

		credited, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:   accountID,
			Amount:      outcome.EarnedToday,
			Category:    domain.CategoryDailyLogin,
			Description: "Daily login reward",
			Metadata: map[string]interface{}{
				"claim_date":     today.Format(time.DateOnly),
				"monthly_target": outcome.State.MonthlyTarget,
				"streak":         outcome.State.Streak,
			},
		})
		if err != nil {
			return err
		}
		result.EarnedToday = outcome.EarnedToday
		result.Balance = credited.NewBalance

		if bonus := s.settings.StreakBonuses.For(outcome.State.Streak); bonus > 0 {
			bonusResult, err := s.applyDelta(ctx, m, domain.Delta{
				AccountID:   accountID,
				Amount:      bonus,
				Category:    domain.CategoryStreakBonus,
				Description: "Login streak bonus",
				Metadata: map[string]interface{}{
					"claim_date": today.Format(time.DateOnly),
					"streak":     outcome.State.Streak,
				},
			})
			if err != nil {
				return err
			}
			result.StreakBonus = bonus
			result.Balance = bonusResult.NewBalance
		}

		return m.tx.SaveDailyLoginState(ctx, accountID, outcome.State)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"component":    "daily_login",
		"account_id":   accountID,
		"reason":       result.Reason,
		"earned_today": result.EarnedToday,
		"streak":       result.Streak,
	}).Info("daily login processed")

	return &result, nil
}
