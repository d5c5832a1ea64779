package main

import (
	"github.com/engagely/points-service/internal/scheduler"
	"github.com/engagely/points-service/internal/store"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the ledger audit and task sweep jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		dbpool, err := openPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer dbpool.Close()

		service := newService(cfg, store.NewPostgresRepository(dbpool), nil, log)
		jobs := scheduler.NewJobs(service, log, cfg.AuditConcurrency)
		cron := scheduler.NewScheduler(jobs, log, cfg)

		cron.Start()
		log.WithField("component", "scheduler").Info("scheduler started")

		<-ctx.Done()
		log.WithField("component", "scheduler").Info("shutdown signal received, stopping scheduler")
		<-cron.Stop().Done()
		log.WithField("component", "scheduler").Info("scheduler stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}
