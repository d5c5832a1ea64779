/**
 * @description
 * This file contains the core business logic of the points-service. Every
 * operation that changes a balance runs inside mutate, which owns the database
 * transaction, retries serialization conflicts and delivers balance
 * notifications once the transaction has committed.
 *
 * @dependencies
 * - internal/store: The data access layer.
 * - github.com/sirupsen/logrus: Structured logging.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/metrics"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const notifyTimeout = 3 * time.Second

// Settings holds the tunable economy rules.
type Settings struct {
	Location         *time.Location
	MinMonthlyTarget int64
	MaxMonthlyTarget int64
	StreakBonuses    domain.StreakBonuses
	ReferrerBonus    int64
	RefereeBonus     int64
	AdminWalletID    uuid.UUID
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	RateLimitPerMin  int
	// RateLimits overrides RateLimitPerMin per scope; zero disables the scope.
	RateLimits map[string]int
}

// DefaultSettings returns the rules used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Location:         time.UTC,
		MinMonthlyTarget: 50,
		MaxMonthlyTarget: 1000,
		StreakBonuses:    domain.StreakBonuses{7: 500, 30: 3000},
		ReferrerBonus:    50,
		RefereeBonus:     20,
		AdminWalletID:    uuid.MustParse("00000000-0000-0000-0000-00000000a001"),
		MaxAttempts:      4,
		RetryBaseDelay:   25 * time.Millisecond,
	}
}

// RateLimiter counts requests per scope and subject within a window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the points ledger operations.
type Service struct {
	repo       store.Repository
	notifier   Notifier
	limiter    RateLimiter
	log        *logrus.Logger
	settings   Settings
	now        func() time.Time
	drawTarget func(min, max int64) int64
}

// NewService creates a new instance of the points service.
func NewService(repo store.Repository, notifier Notifier, log *logrus.Logger, settings Settings) *Service {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 1
	}
	if settings.MinMonthlyTarget < domain.MinMonthlyTarget || settings.MaxMonthlyTarget < settings.MinMonthlyTarget {
		defaults := DefaultSettings()
		settings.MinMonthlyTarget = defaults.MinMonthlyTarget
		settings.MaxMonthlyTarget = defaults.MaxMonthlyTarget
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		settings: settings,
		now:      time.Now,
		drawTarget: func(min, max int64) int64 {
			return min + rand.Int64N(max-min+1)
		},
	}
}

// SetRateLimiter enables per-user request limiting on mutating operations.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetTargetDrawer overrides how monthly daily-login targets are drawn.
func (s *Service) SetTargetDrawer(draw func(min, max int64) int64) {
	s.drawTarget = draw
}

// AdminWalletID returns the id of the persisted admin wallet account.
func (s *Service) AdminWalletID() uuid.UUID {
	return s.settings.AdminWalletID
}

// mutation is the state of one transactional attempt.
type mutation struct {
	tx      store.Tx
	now     time.Time
	updates []pendingUpdate
}

// mutate runs fn in a transaction, retrying conflicts with exponential backoff.
// Results captured by fn must be assigned, not appended, since fn may run more
// than once.
func (s *Service) mutate(ctx context.Context, operation string, fn func(m *mutation) error) error {
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var m *mutation
	var err error
	for attempt := 1; attempt <= s.settings.MaxAttempts; attempt++ {
		m = &mutation{now: s.now().UTC()}
		err = s.repo.WithTx(ctx, func(tx store.Tx) error {
			m.tx = tx
			return fn(m)
		})
		if !errors.Is(err, store.ErrConcurrencyConflict) {
			break
		}

		metrics.ConflictRetries.Inc()
		s.log.WithFields(logrus.Fields{
			"component": "ledger",
			"operation": operation,
			"attempt":   attempt,
			"error":     err,
		}).Warn("transaction conflict; retrying")

		if attempt == s.settings.MaxAttempts {
			break
		}
		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			err = waitErr
			break
		}
	}

	if err != nil {
		if errors.Is(err, store.ErrConcurrencyConflict) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.OperationErrors.WithLabelValues(operation, errorKind(err)).Inc()
		return err
	}

	s.flush(ctx, m.updates)
	return nil
}

func (s *Service) backoff(ctx context.Context, attempt int) error {
	delay := s.settings.RetryBaseDelay << (attempt - 1)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// flush delivers committed balance updates. The request context may already be
// cancelled, so delivery runs on a detached context with its own timeout.
func (s *Service) flush(ctx context.Context, updates []pendingUpdate) {
	for _, update := range updates {
		metrics.RecordEntry(string(update.Category), update.Amount)

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		err := s.notifier.Notify(notifyCtx, update.BalanceUpdate)
		cancel()
		if err != nil {
			metrics.NotifyFailures.Inc()
			s.log.WithFields(logrus.Fields{
				"component":  "notifier",
				"account_id": update.AccountID,
				"error":      err,
			}).Warn("balance notification failed")
		}
	}
}

// pendingUpdate pairs a notification with the signed amount for metrics.
type pendingUpdate struct {
	domain.BalanceUpdate
	Amount int64
}

// applyDelta is the only path that changes a balance. It locks the account,
// rejects a debit the balance cannot cover, applies the change and appends the
// matching ledger entry inside the caller's transaction.
func (s *Service) applyDelta(ctx context.Context, m *mutation, delta domain.Delta) (domain.DeltaResult, error) {
	if delta.Amount == 0 {
		return domain.DeltaResult{}, ErrInvalidAmount
	}
	if !delta.Category.Valid() {
		return domain.DeltaResult{}, ErrInvalidCategory
	}

	account, err := m.tx.LockAccount(ctx, delta.AccountID)
	if err != nil {
		return domain.DeltaResult{}, err
	}
	if delta.Amount < 0 && account.Balance < -delta.Amount {
		return domain.DeltaResult{}, ErrInsufficientBalance
	}

	newBalance, err := m.tx.ApplyBalanceDelta(ctx, account.ID, delta.Amount)
	if err != nil {
		return domain.DeltaResult{}, err
	}

	// Entries of one transaction share created_at; v7 ids keep them in write order.
	entryID, err := uuid.NewV7()
	if err != nil {
		return domain.DeltaResult{}, err
	}
	entry := &domain.LedgerEntry{
		ID:            entryID,
		AccountID:     account.ID,
		Amount:        delta.Amount,
		Category:      delta.Category,
		RelatedTaskID: delta.RelatedTaskID,
		Description:   delta.Description,
		Metadata:      delta.Metadata,
		BalanceAfter:  newBalance,
		CreatedAt:     m.now,
	}
	if err := m.tx.InsertLedgerEntry(ctx, entry); err != nil {
		return domain.DeltaResult{}, err
	}

	m.updates = append(m.updates, pendingUpdate{
		BalanceUpdate: domain.BalanceUpdate{
			AccountID:  account.ID,
			UserID:     account.UserID,
			Balance:    newBalance,
			Category:   delta.Category,
			EntryID:    entry.ID,
			OccurredAt: m.now,
		},
		Amount: delta.Amount,
	})

	s.log.WithFields(logrus.Fields{
		"component":   "ledger",
		"account_id":  account.ID,
		"category":    delta.Category,
		"amount":      delta.Amount,
		"new_balance": newBalance,
	}).Debug("ledger entry applied")

	return domain.DeltaResult{NewBalance: newBalance, EntryID: entry.ID}, nil
}

// enforceRateLimit rejects the request when the subject exceeded its per-minute
// budget for scope. A scope listed in RateLimits uses that budget instead of
// RateLimitPerMin. Limiter failures let the request through.
func (s *Service) enforceRateLimit(ctx context.Context, scope string, subject uuid.UUID) error {
	limit := s.settings.RateLimitPerMin
	if scoped, ok := s.settings.RateLimits[scope]; ok {
		limit = scoped
	}
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, subject.String(), limit, time.Minute)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"component": "rate_limiter",
			"scope":     scope,
			"error":     err,
		}).Warn("rate limiter unavailable; allowing request")
		return nil
	}
	if count > limit {
		if retryAfter < 1 {
			retryAfter = 1
		}
		return &RateLimitError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}
