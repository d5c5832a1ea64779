/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package scheduler

import (
	"context"

	"github.com/engagely/points-service/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	log    *logrus.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, log *logrus.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(log.WithField("component", "cron"))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		log:    log,
		config: cfg,
	}
}

// Register adds the jobs to the cron table. It returns the number of jobs that
// were scheduled.
func (s *Scheduler) Register() int {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{name: "ledger audit", schedule: s.config.LedgerAuditSchedule, run: s.jobs.AuditLedger},
		{name: "task sweep", schedule: s.config.TaskSweepSchedule, run: s.jobs.SweepExhaustedTasks},
	}

	scheduled := 0
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			s.log.WithFields(logrus.Fields{"component": "scheduler", "job": e.name, "schedule": e.schedule, "error": err}).Error("failed to schedule job")
			continue
		}
		scheduled++
		s.log.WithFields(logrus.Fields{"component": "scheduler", "job": e.name, "schedule": e.schedule}).Info("scheduled job")
	}
	return scheduled
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Register()
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
