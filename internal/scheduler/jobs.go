/**
 * @description
 * Scheduled maintenance jobs for the points ledger.
 */
package scheduler

import (
	"context"
	"time"

	"github.com/engagely/points-service/internal/app"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 10 * time.Minute

// Maintainer is the part of the points service the jobs drive.
type Maintainer interface {
	AuditLedger(ctx context.Context, concurrency int) (app.AuditReport, error)
	SweepExhaustedTasks(ctx context.Context) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service          Maintainer
	log              *logrus.Logger
	auditConcurrency int
}

// NewJobs creates a new Jobs runner.
func NewJobs(service Maintainer, log *logrus.Logger, auditConcurrency int) *Jobs {
	return &Jobs{service: service, log: log, auditConcurrency: auditConcurrency}
}

// AuditLedger checks every balance against its ledger entries.
func (j *Jobs) AuditLedger() {
	logger := j.log.WithField("component", "ledger_audit_job")
	logger.Info("starting ledger audit job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := time.Now()
	report, err := j.service.AuditLedger(ctx, j.auditConcurrency)
	if err != nil {
		logger.WithFields(logrus.Fields{"checked": report.Checked, "error": err}).Error("ledger audit failed")
		return
	}

	fields := logrus.Fields{
		"checked":  report.Checked,
		"drifted":  len(report.Drifted),
		"duration": time.Since(started).String(),
	}
	if len(report.Drifted) > 0 {
		logger.WithFields(fields).Error("ledger audit found drifted accounts")
		return
	}
	logger.WithFields(fields).Info("ledger audit job finished")
}

// SweepExhaustedTasks marks tasks that can no longer pay out.
func (j *Jobs) SweepExhaustedTasks() {
	logger := j.log.WithField("component", "task_sweep_job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	swept, err := j.service.SweepExhaustedTasks(ctx)
	if err != nil {
		logger.WithField("error", err).Error("failed to sweep exhausted tasks")
		return
	}
	if swept > 0 {
		logger.WithField("swept", swept).Info("marked tasks exhausted")
	}
}
