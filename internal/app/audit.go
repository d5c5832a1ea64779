package app

import (
	"context"
	"sync"

	"github.com/engagely/points-service/internal/metrics"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const auditPageSize = 500

// AuditReport summarizes one pass of the ledger consistency audit.
type AuditReport struct {
	Checked int
	Drifted []store.LedgerAudit
}

// AuditLedger compares every account's balance with the sum of its ledger
// entries. Drift is reported, never repaired.
func (s *Service) AuditLedger(ctx context.Context, concurrency int) (AuditReport, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var mu sync.Mutex
	report := AuditReport{}
	after := uuid.Nil

	for {
		ids, err := s.repo.ListAccountIDs(ctx, after, auditPageSize)
		if err != nil {
			return report, err
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ids {
			id := id
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				audit, err := s.repo.AuditAccount(gctx, id)
				if err != nil {
					return err
				}
				mu.Lock()
				report.Checked++
				if audit.Drift() != 0 {
					report.Drifted = append(report.Drifted, audit)
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		after = ids[len(ids)-1]
		if len(ids) < auditPageSize {
			break
		}
	}

	metrics.LedgerDriftAccounts.Set(float64(len(report.Drifted)))
	for _, d := range report.Drifted {
		s.log.WithFields(logrus.Fields{
			"component":  "ledger_audit",
			"account_id": d.AccountID,
			"balance":    d.Balance,
			"ledger_sum": d.LedgerSum,
			"drift":      d.Drift(),
		}).Error("balance does not match ledger")
	}
	return report, nil
}

// SweepExhaustedTasks marks active tasks that can no longer pay out.
func (s *Service) SweepExhaustedTasks(ctx context.Context) (int64, error) {
	return s.repo.MarkExhaustedTasks(ctx)
}
