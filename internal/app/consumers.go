package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/sirupsen/logrus"
)

const UserRegisteredRoutingKey = "user.registered"

// AccountRegistrar is the part of Service the account event consumer needs.
type AccountRegistrar interface {
	RegisterAccount(ctx context.Context, req domain.RegisterAccountRequest) (*domain.Account, bool, error)
}

// AccountEventConsumer creates accounts from identity-service events.
type AccountEventConsumer struct {
	registrar AccountRegistrar
	log       *logrus.Logger
	timeout   time.Duration
}

func NewAccountEventConsumer(registrar AccountRegistrar, log *logrus.Logger) *AccountEventConsumer {
	return &AccountEventConsumer{registrar: registrar, log: log, timeout: 15 * time.Second}
}

// HandleUserRegistered returns true to acknowledge the delivery. Malformed
// payloads are dropped; transient failures are requeued.
func (c *AccountEventConsumer) HandleUserRegistered(body []byte) bool {
	var event domain.RegisterAccountRequest
	if err := json.Unmarshal(body, &event); err != nil {
		c.log.WithFields(logrus.Fields{"component": "account_consumer", "error": err}).Error("invalid user.registered payload; dropping")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	account, created, err := c.registrar.RegisterAccount(ctx, event)
	if err != nil {
		if errors.Is(err, ErrInvalidAccount) {
			c.log.WithFields(logrus.Fields{"component": "account_consumer", "user_id": event.UserID}).Error("incomplete user.registered event; dropping")
			return true
		}
		c.log.WithFields(logrus.Fields{"component": "account_consumer", "user_id": event.UserID, "error": err}).Warn("account registration failed; requeueing")
		return false
	}

	c.log.WithFields(logrus.Fields{
		"component":  "account_consumer",
		"account_id": account.ID,
		"created":    created,
	}).Debug("user.registered handled")
	return true
}
