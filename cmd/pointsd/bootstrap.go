package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engagely/points-service/internal/app"
	"github.com/engagely/points-service/internal/config"
	"github.com/engagely/points-service/internal/logging"
	"github.com/engagely/points-service/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// bootstrap loads configuration and builds the process logger.
func bootstrap() (config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("config load failed: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.GetLevel())
	return cfg, log, nil
}

// openPool connects to PostgreSQL with the shared pool sizing.
func openPool(ctx context.Context, cfg config.Config, log *logrus.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL must be configured")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database url parse failed: %w", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching so the pool works behind pgbouncer.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	log.WithField("component", "bootstrap").Info("database connected")
	return dbpool, nil
}

// newService builds the points service from configuration.
func newService(cfg config.Config, repo store.Repository, notifier app.Notifier, log *logrus.Logger) *app.Service {
	return app.NewService(repo, notifier, log, app.Settings{
		Location:         cfg.Location(),
		MinMonthlyTarget: cfg.DailyLoginMinTarget,
		MaxMonthlyTarget: cfg.DailyLoginMaxTarget,
		StreakBonuses:    cfg.Bonuses(),
		ReferrerBonus:    cfg.ReferrerBonus,
		RefereeBonus:     cfg.RefereeBonus,
		AdminWalletID:    cfg.AdminWalletID(),
		MaxAttempts:      cfg.LedgerMaxAttempts,
		RetryBaseDelay:   cfg.RetryBaseDelay(),
		RateLimitPerMin:  cfg.RateLimitPerMinute,
		RateLimits:       cfg.ScopedRateLimits(),
	})
}
