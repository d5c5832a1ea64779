/**
 * @description
 * This package handles the configuration management for the points-service. It
 * uses Viper to read configuration from environment variables and an optional
 * .env file, then coerces out-of-range values back to their defaults.
 *
 * @dependencies
 * - github.com/spf13/viper: Configuration loading and env binding.
 * - github.com/sirupsen/logrus: Warnings about coerced values.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	defaultAdminWalletID   = "00000000-0000-0000-0000-00000000a001"
	defaultStreakBonuses   = "7:500,30:3000"
	defaultRateLimitPrefix = "points:rate_limit"
	defaultRateLimits      = "daily_login:10,transfer:30,redeem:30"

	minMonthlyTarget = domain.MinMonthlyTarget
)

// Config holds all the configuration variables for the points-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix   string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RateLimitPerMinute     int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RateLimits             string `mapstructure:"RATE_LIMITS"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	PointsEventsExchange   string `mapstructure:"POINTS_EVENTS_EXCHANGE"`
	NotifyQueueSize        int    `mapstructure:"NOTIFY_QUEUE_SIZE"`
	AccountEventQueue      string `mapstructure:"POINTS_ACCOUNT_EVENT_QUEUE"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	JWTIssuer              string `mapstructure:"JWT_ISSUER"`
	JWTAudience            string `mapstructure:"JWT_AUDIENCE"`
	InternalAPIKey         string `mapstructure:"INTERNAL_API_KEY"`
	AdminWalletAccountID   string `mapstructure:"ADMIN_WALLET_ACCOUNT_ID"`
	DailyLoginTimezone     string `mapstructure:"DAILY_LOGIN_TIMEZONE"`
	DailyLoginMinTarget    int64  `mapstructure:"DAILY_LOGIN_MIN_TARGET"`
	DailyLoginMaxTarget    int64  `mapstructure:"DAILY_LOGIN_MAX_TARGET"`
	StreakBonuses          string `mapstructure:"STREAK_BONUSES"`
	ReferrerBonus          int64  `mapstructure:"REFERRER_BONUS"`
	RefereeBonus           int64  `mapstructure:"REFEREE_BONUS"`
	LedgerMaxAttempts      int    `mapstructure:"LEDGER_MAX_ATTEMPTS"`
	LedgerRetryBaseDelayMs int    `mapstructure:"LEDGER_RETRY_BASE_DELAY_MS"`
	LedgerAuditSchedule    string `mapstructure:"LEDGER_AUDIT_SCHEDULE"`
	TaskSweepSchedule      string `mapstructure:"TASK_SWEEP_SCHEDULE"`
	AuditConcurrency       int    `mapstructure:"AUDIT_CONCURRENCY"`
	LogLevel               string `mapstructure:"LOG_LEVEL"`
	LogFormat              string `mapstructure:"LOG_FORMAT"`
}

// LoadConfig reads configuration from environment variables and the optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("RATE_LIMITS", defaultRateLimits)
	viper.SetDefault("POINTS_EVENTS_EXCHANGE", "points.events")
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 1024)
	viper.SetDefault("POINTS_ACCOUNT_EVENT_QUEUE", "points_service.user_registered")
	viper.SetDefault("ADMIN_WALLET_ACCOUNT_ID", defaultAdminWalletID)
	viper.SetDefault("DAILY_LOGIN_TIMEZONE", "UTC")
	viper.SetDefault("DAILY_LOGIN_MIN_TARGET", 50)
	viper.SetDefault("DAILY_LOGIN_MAX_TARGET", 1000)
	viper.SetDefault("STREAK_BONUSES", defaultStreakBonuses)
	viper.SetDefault("REFERRER_BONUS", 50)
	viper.SetDefault("REFEREE_BONUS", 20)
	viper.SetDefault("LEDGER_MAX_ATTEMPTS", 4)
	viper.SetDefault("LEDGER_RETRY_BASE_DELAY_MS", 25)
	viper.SetDefault("LEDGER_AUDIT_SCHEDULE", "@every 1h")
	viper.SetDefault("TASK_SWEEP_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("AUDIT_CONCURRENCY", 8)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL",
		"REDIS_RATE_LIMIT_PREFIX", "RATE_LIMIT_PER_MINUTE", "RATE_LIMITS",
		"RABBITMQ_URL", "POINTS_EVENTS_EXCHANGE", "NOTIFY_QUEUE_SIZE", "POINTS_ACCOUNT_EVENT_QUEUE",
		"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE",
		"ADMIN_WALLET_ACCOUNT_ID", "DAILY_LOGIN_TIMEZONE",
		"DAILY_LOGIN_MIN_TARGET", "DAILY_LOGIN_MAX_TARGET", "STREAK_BONUSES",
		"REFERRER_BONUS", "REFEREE_BONUS",
		"LEDGER_MAX_ATTEMPTS", "LEDGER_RETRY_BASE_DELAY_MS",
		"LEDGER_AUDIT_SCHEDULE", "TASK_SWEEP_SCHEDULE", "AUDIT_CONCURRENCY",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "POINTS_REDIS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "POINTS_SERVICE_INTERNAL_API_KEY")

	// It's okay if the .env file doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithFields(logrus.Fields{"component": "config", "error": err}).Warn("failed to read config file; using environment values")
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.JWTSecret = strings.TrimSpace(config.JWTSecret)

	config.normalize()
	return
}

func (c *Config) normalize() {
	if c.RateLimitPerMinute < 0 {
		warnCoerced("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute, 60)
		c.RateLimitPerMinute = 60
	}
	if c.DailyLoginMinTarget < minMonthlyTarget {
		warnCoerced("DAILY_LOGIN_MIN_TARGET", c.DailyLoginMinTarget, minMonthlyTarget)
		c.DailyLoginMinTarget = minMonthlyTarget
	}
	if c.DailyLoginMaxTarget < c.DailyLoginMinTarget {
		warnCoerced("DAILY_LOGIN_MAX_TARGET", c.DailyLoginMaxTarget, c.DailyLoginMinTarget)
		c.DailyLoginMaxTarget = c.DailyLoginMinTarget
	}
	if c.ReferrerBonus < 0 {
		warnCoerced("REFERRER_BONUS", c.ReferrerBonus, 0)
		c.ReferrerBonus = 0
	}
	if c.RefereeBonus < 0 {
		warnCoerced("REFEREE_BONUS", c.RefereeBonus, 0)
		c.RefereeBonus = 0
	}
	if c.NotifyQueueSize <= 0 {
		warnCoerced("NOTIFY_QUEUE_SIZE", c.NotifyQueueSize, 1024)
		c.NotifyQueueSize = 1024
	}
	if c.LedgerMaxAttempts <= 0 {
		warnCoerced("LEDGER_MAX_ATTEMPTS", c.LedgerMaxAttempts, 4)
		c.LedgerMaxAttempts = 4
	}
	if c.LedgerRetryBaseDelayMs < 0 {
		warnCoerced("LEDGER_RETRY_BASE_DELAY_MS", c.LedgerRetryBaseDelayMs, 25)
		c.LedgerRetryBaseDelayMs = 25
	}
	if c.AuditConcurrency <= 0 {
		warnCoerced("AUDIT_CONCURRENCY", c.AuditConcurrency, 8)
		c.AuditConcurrency = 8
	}
	if _, err := uuid.Parse(strings.TrimSpace(c.AdminWalletAccountID)); err != nil {
		warnCoerced("ADMIN_WALLET_ACCOUNT_ID", c.AdminWalletAccountID, defaultAdminWalletID)
		c.AdminWalletAccountID = defaultAdminWalletID
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.DailyLoginTimezone)); err != nil {
		warnCoerced("DAILY_LOGIN_TIMEZONE", c.DailyLoginTimezone, "UTC")
		c.DailyLoginTimezone = "UTC"
	}
	if _, err := ParseRateLimits(c.RateLimits); err != nil {
		warnCoerced("RATE_LIMITS", c.RateLimits, defaultRateLimits)
		c.RateLimits = defaultRateLimits
	}
	if _, err := ParseStreakBonuses(c.StreakBonuses); err != nil {
		warnCoerced("STREAK_BONUSES", c.StreakBonuses, defaultStreakBonuses)
		c.StreakBonuses = defaultStreakBonuses
	}
}

func warnCoerced(key string, value, fallback interface{}) {
	logrus.WithFields(logrus.Fields{
		"component": "config",
		"key":       key,
		"value":     value,
		"fallback":  fallback,
	}).Warn("invalid config value; using fallback")
}

// Location returns the daily-login timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.DailyLoginTimezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// AdminWalletID returns the configured admin wallet account id.
func (c Config) AdminWalletID() uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(c.AdminWalletAccountID))
	if err != nil {
		return uuid.MustParse(defaultAdminWalletID)
	}
	return id
}

// RetryBaseDelay returns the first ledger retry backoff.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.LedgerRetryBaseDelayMs) * time.Millisecond
}

// Bonuses returns the parsed streak bonus table.
func (c Config) Bonuses() domain.StreakBonuses {
	bonuses, err := ParseStreakBonuses(c.StreakBonuses)
	if err != nil {
		bonuses, _ = ParseStreakBonuses(defaultStreakBonuses)
	}
	return bonuses
}

// ScopedRateLimits returns the parsed per-scope request budgets.
func (c Config) ScopedRateLimits() map[string]int {
	limits, err := ParseRateLimits(c.RateLimits)
	if err != nil {
		limits, _ = ParseRateLimits(defaultRateLimits)
	}
	return limits
}

// ParseRateLimits parses "scope:perMinute" pairs separated by commas, for example
// "transfer:30,redeem:30". A zero budget disables limiting for that scope.
func ParseRateLimits(raw string) (map[string]int, error) {
	limits := map[string]int{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return limits, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		scope, perMinute, ok := strings.Cut(strings.TrimSpace(pair), ":")
		scope = strings.ToLower(strings.TrimSpace(scope))
		if !ok || scope == "" {
			return nil, fmt.Errorf("rate limit %q: expected scope:perMinute", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(perMinute))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("rate limit %q: invalid budget", pair)
		}
		limits[scope] = n
	}
	return limits, nil
}

// ParseStreakBonuses parses "days:points" pairs separated by commas, for example
// "7:500,30:3000". An empty string disables streak bonuses.
func ParseStreakBonuses(raw string) (domain.StreakBonuses, error) {
	bonuses := domain.StreakBonuses{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return bonuses, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		days, points, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("streak bonus %q: expected days:points", pair)
		}
		d, err := strconv.Atoi(strings.TrimSpace(days))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("streak bonus %q: invalid day count", pair)
		}
		p, err := strconv.ParseInt(strings.TrimSpace(points), 10, 64)
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("streak bonus %q: invalid points", pair)
		}
		if _, dup := bonuses[d]; dup {
			return nil, fmt.Errorf("streak bonus %q: day %d listed twice", pair, d)
		}
		bonuses[d] = p
	}
	return bonuses, nil
}
