package app

import (
	"bytes"
	"context"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TransferPoints moves amount from sender to receiver in one transaction.
func (s *Service) TransferPoints(ctx context.Context, senderID, receiverID uuid.UUID, amount int64) (*domain.TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, ErrSelfTransfer
	}
	if err := s.enforceRateLimit(ctx, "transfer", senderID); err != nil {
		return nil, err
	}

	var result domain.TransferResult
	err := s.mutate(ctx, "transfer", func(m *mutation) error {
		// Lock in id order so opposing transfers cannot deadlock.
		first, second := senderID, receiverID
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		locked := make(map[uuid.UUID]*domain.Account, 2)
		for _, id := range []uuid.UUID{first, second} {
			account, err := m.tx.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}
		sender, receiver := locked[senderID], locked[receiverID]

		debited, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:   senderID,
			Amount:      -amount,
			Category:    domain.CategoryTransferOut,
			Description: "Transfer to " + receiver.Username,
			Metadata: map[string]interface{}{
				"counterparty_id":       receiver.ID.String(),
				"counterparty_username": receiver.Username,
			},
		})
		if err != nil {
			return err
		}
		if _, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:   receiverID,
			Amount:      amount,
			Category:    domain.CategoryTransferIn,
			Description: "Transfer from " + sender.Username,
			Metadata: map[string]interface{}{
				"counterparty_id":       sender.ID.String(),
				"counterparty_username": sender.Username,
			},
		}); err != nil {
			return err
		}

		result = domain.TransferResult{SenderBalance: debited.NewBalance, ReceiverID: receiverID, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"component":   "transfer",
		"sender_id":   senderID,
		"receiver_id": receiverID,
		"amount":      amount,
	}).Info("points transferred")
	return &result, nil
}

// RedeemPoints burns amount from the account. Fulfilment happens elsewhere.
func (s *Service) RedeemPoints(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := s.enforceRateLimit(ctx, "redeem", accountID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.mutate(ctx, "redeem", func(m *mutation) error {
		res, err := s.applyDelta(ctx, m, domain.Delta{
			AccountID:   accountID,
			Amount:      -amount,
			Category:    domain.CategoryRedeem,
			Description: "Points redeemed",
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
	return balance, nil
}
