package main

import (
	"github.com/engagely/points-service/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and seed default settings",
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

		repository := store.NewPostgresRepository(dbpool)
		if err := repository.Migrate(ctx); err != nil {
			return err
		}

		service := newService(cfg, repository, nil, log)
		if err := service.EnsureAdminWallet(ctx); err != nil {
			return err
		}
		log.WithField("component", "migrate").Info("schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
