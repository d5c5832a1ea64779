package app

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	adminWalletUserID   = "system:admin-wallet"
	adminWalletUsername = "admin-wallet"
)

// AdminAdjust mints (positive) or burns (negative) points on an account. A burn
// flagged as a correction is bounded by the current balance instead of failing;
// the requested and applied amounts are both recorded on the entry.
func (s *Service) AdminAdjust(ctx context.Context, adminSubject string, accountID uuid.UUID, req domain.AdminAdjustRequest) (int64, error) {
	reason := strings.TrimSpace(req.Reason)
	if req.Amount == 0 {
		return 0, ErrInvalidAmount
	}
	if reason == "" {
		return 0, ErrReasonRequired
	}

	var balance int64
	var applied int64
	err := s.mutate(ctx, "admin_adjust", func(m *mutation) error {
		account, err := m.tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}

		applied = req.Amount
		if req.Correction && applied < 0 && account.Balance < -applied {
			applied = -account.Balance
		}
		if applied == 0 {
			balance = account.Balance
			return nil
		}

		res, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:   accountID,
			Amount:      applied,
			Category:    domain.CategoryAdminAdjust,
			Description: reason,
			Metadata: map[string]interface{}{
				"admin":            adminSubject,
				"reason":           reason,
				"correction":       req.Correction,
				"requested_amount": req.Amount,
				"applied_amount":   applied,
			},
		})
		if err != nil {
			return err
		}
		balance = res.NewBalance
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"component":  "admin",
		"admin":      adminSubject,
		"account_id": accountID,
		"requested":  req.Amount,
		"applied":    applied,
		"reason":     reason,
	}).Info("admin adjustment applied")
	return balance, nil
}

// EnsureAdminWallet creates the persisted admin wallet account if missing.
func (s *Service) EnsureAdminWallet(ctx context.Context) error {
	return s.repo.WithTx(ctx, func(tx store.Tx) error {
		err := tx.InsertAccount(ctx, &domain.Account{
			ID:        s.settings.AdminWalletID,
			UserID:    adminWalletUserID,
			Username:  adminWalletUsername,
			Kind:      domain.AccountKindSystem,
			CreatedAt: s.now().UTC(),
		})
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return err
	})
}

// GetAdminWallet returns the admin wallet account.
func (s *Service) GetAdminWallet(ctx context.Context) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, s.settings.AdminWalletID)
}

// FundAdminWallet mints amount into the admin wallet.
func (s *Service) FundAdminWallet(ctx context.Context, adminSubject string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.AdminAdjust(ctx, adminSubject, s.settings.AdminWalletID, domain.AdminAdjustRequest{
		Amount: amount,
		Reason: "admin wallet funded",
	})
}

// ResetAdminWallet burns the whole admin wallet balance.
func (s *Service) ResetAdminWallet(ctx context.Context, adminSubject string) (int64, error) {
	wallet, err := s.GetAdminWallet(ctx)
	if err != nil {
		return 0, err
	}
	if wallet.Balance == 0 {
		return 0, nil
	}
	return s.AdminAdjust(ctx, adminSubject, wallet.ID, domain.AdminAdjustRequest{
		Amount:     -wallet.Balance,
		Reason:     "admin wallet reset",
		Correction: true,
	})
}

// RewardLeaderboard credits each of the current top accounts amount points in a
// single transaction.
func (s *Service) RewardLeaderboard(ctx context.Context, adminSubject string, top int, amount int64) ([]domain.LeaderboardEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if top <= 0 {
		top = 3
	}

	var rewarded []domain.LeaderboardEntry
	err := s.mutate(ctx, "reward_leaderboard", func(m *mutation) error {
		ids, err := m.tx.TopAccountIDs(ctx, top)
		if err != nil {
			return err
		}
		// Lock in id order like transfers do; ranks still follow ids.
		ordered := slices.Clone(ids)
		slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
		locked := make(map[uuid.UUID]*domain.Account, len(ordered))
		for _, id := range ordered {
			account, err := m.tx.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		rewarded = make([]domain.LeaderboardEntry, 0, len(ids))
		for i, id := range ids {
			account := locked[id]
			res, err := s.applyDelta(ctx, m, domain.Delta{
				AccountID:   id,
				Amount:      amount,
				Category:    domain.CategoryAdminAdjust,
				Description: "Leaderboard reward",
				Metadata: map[string]interface{}{
					"admin":  adminSubject,
					"reason": "leaderboard-reward",
					"rank":   i + 1,
				},
			})
			if err != nil {
				return err
			}
			rewarded = append(rewarded, domain.LeaderboardEntry{
				Rank:      i + 1,
				AccountID: id,
				Username:  account.Username,
				Balance:   res.NewBalance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"component": "admin",
		"admin":     adminSubject,
		"rewarded":  len(rewarded),
		"amount":    amount,
	}).Info("leaderboard rewarded")
	return rewarded, nil
}

// DeleteAccount soft-deletes an account; its ledger history is kept.
func (s *Service) DeleteAccount(ctx context.Context, adminSubject string, accountID uuid.UUID) error {
	if accountID == s.settings.AdminWalletID {
		return ErrForbidden
	}
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.SoftDeleteAccount(ctx, accountID)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"component":  "admin",
		"admin":      adminSubject,
		"account_id": accountID,
	}).Info("account soft-deleted")
	return nil
}
