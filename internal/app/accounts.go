package app

import (
	"context"
	"errors"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RegisterAccount creates the account for a newly registered user and pays the
// referral bonuses when a known referrer is named. Registering the same user
// again returns the existing account and pays nothing.
func (s *Service) RegisterAccount(ctx context.Context, req domain.RegisterAccountRequest) (*domain.Account, bool, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Username = strings.TrimSpace(req.Username)
	req.ReferrerUserID = strings.TrimSpace(req.ReferrerUserID)
	if req.UserID == "" || req.Username == "" {
		return nil, false, ErrInvalidAccount
	}

	var created bool
	var referred bool
	accountID := uuid.New()
	err := s.mutate(ctx, "register_account", func(m *mutation) error {
		created, referred = false, false
		err := m.tx.InsertAccount(ctx, &domain.Account{
			ID:        accountID,
			UserID:    req.UserID,
			Username:  req.Username,
			Kind:      domain.AccountKindUser,
			CreatedAt: m.now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		if err != nil {
			return err
		}
		created = true

		if req.ReferrerUserID == "" || req.ReferrerUserID == req.UserID {
			return nil
		}
		referrer, err := m.tx.LockAccountByUserID(ctx, req.ReferrerUserID)
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if referrer.Kind != domain.AccountKindUser {
			return nil
		}

		if s.settings.ReferrerBonus > 0 {
			if _, err := s.applyDelta(ctx, m, domain.Delta{
				AccountID:   referrer.ID,
				Amount:      s.settings.ReferrerBonus,
				Category:    domain.CategoryReferralBonus,
				Description: "Referral bonus for inviting " + req.Username,
				Metadata:    map[string]interface{}{"referred_account_id": accountID.String()},
			}); err != nil {
				return err
			}
		}
		if s.settings.RefereeBonus > 0 {
			if _, err := s.applyDelta(ctx, m, domain.Delta{
				AccountID:   accountID,
				Amount:      s.settings.RefereeBonus,
				Category:    domain.CategoryReferralBonus,
				Description: "Welcome bonus for joining with a referral",
				Metadata:    map[string]interface{}{"referrer_account_id": referrer.ID.String()},
			}); err != nil {
				return err
			}
		}
		referred = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	account, err := s.repo.FindAccountByUserID(ctx, req.UserID)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.WithFields(logrus.Fields{
			"component":  "accounts",
			"account_id": account.ID,
			"user_id":    account.UserID,
			"referred":   referred,
		}).Info("account registered")
	}
	return account, created, nil
}

// GetAccountByUserID resolves the live account behind an identity-service subject.
func (s *Service) GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	return s.repo.FindAccountByUserID(ctx, userID)
}

// ResolveAccountByUsername resolves a transfer recipient.
func (s *Service) ResolveAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrAccountNotFound
	}
	return s.repo.FindAccountByUsername(ctx, username)
}

// GetWallet returns the account with the first page of its history.
func (s *Service) GetWallet(ctx context.Context, accountID uuid.UUID) (*domain.Wallet, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	page, err := s.GetHistory(ctx, accountID, "", 0)
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{Account: *account, History: *page}, nil
}

// Leaderboard returns the top user accounts by balance.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	accounts, err := s.repo.TopAccounts(ctx, store.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	board := make([]domain.LeaderboardEntry, 0, len(accounts))
	for i, a := range accounts {
		board = append(board, domain.LeaderboardEntry{
			Rank:      i + 1,
			AccountID: a.ID,
			Username:  a.Username,
			Balance:   a.Balance,
		})
	}
	return board, nil
}
