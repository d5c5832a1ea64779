/**
 * @description
 * This is the main entry point for the points-service. The binary has three
 * commands: serve runs the HTTP API and event consumer, scheduler runs the
 * ledger maintenance jobs, and migrate applies the database schema.
 *
 * @dependencies
 * - github.com/spf13/cobra: Command-line structure.
 * - github.com/joho/godotenv: Loads a local .env file before configuration.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pointsd",
	Short:         "Points economy ledger service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-dir", ".", "Directory holding an optional .env file")
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.WithFields(logrus.Fields{"component": "bootstrap", "error": err}).Error("pointsd exited with error")
		os.Exit(1)
	}
}
