package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/engagely/points-service/internal/api"
	"github.com/engagely/points-service/internal/app"
	"github.com/engagely/points-service/internal/store"
	"github.com/engagely/points-service/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the account event consumer",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	boot := log.WithField("component", "bootstrap")
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be configured")
	}
	if cfg.InternalAPIKey == "" {
		boot.Warn("internal api key not configured; internal routes disabled")
	}
	boot.WithField("port", cfg.ServerPort).Info("starting points-service")

	dbpool, err := openPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	// The producer degrades to a no-op so balance notifications never block boot.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		boot.WithField("error", err).Warn("rabbitmq producer unavailable; using fallback")
	} else {
		publisher = producer
		boot.Info("rabbitmq producer connected")
	}
	defer publisher.Close()

	repository := store.NewPostgresRepository(dbpool)
	notifier := app.NewAsyncNotifier(app.NewEventNotifier(publisher, cfg.PointsEventsExchange), cfg.NotifyQueueSize, log)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := notifier.Close(drainCtx); err != nil {
			log.WithFields(logrus.Fields{"component": "notifier", "error": err}).Warn("pending balance notifications dropped")
		}
	}()
	service := newService(cfg, repository, notifier, log)

	if redisClient := connectRedis(ctx, cfg.RedisURL, boot); redisClient != nil {
		defer redisClient.Close()
		service.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix))
	}

	if err := service.EnsureAdminWallet(ctx); err != nil {
		return fmt.Errorf("admin wallet bootstrap failed: %w", err)
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		boot.WithField("error", err).Warn("rabbitmq consumer unavailable; accounts must be registered over the internal API")
	} else {
		defer consumer.Close()
		accountEvents := app.NewAccountEventConsumer(service, log)
		bindings := map[string]rabbitmq.Handler{
			app.UserRegisteredRoutingKey: accountEvents.HandleUserRegistered,
		}
		if err := consumer.ConsumeWithBindings(cfg.PointsEventsExchange, cfg.AccountEventQueue, bindings); err != nil {
			return fmt.Errorf("account consumer start failed: %w", err)
		}
	}

	handlers := api.NewHandlers(service, log)
	router := api.NewRouter(handlers, api.RouterConfig{
		Auth: api.AuthConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
		InternalAPIKey: cfg.InternalAPIKey,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"component": "http", "addr": server.Addr}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
	case <-ctx.Done():
	}

	log.WithField("component", "http").Info("shutdown started")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithFields(logrus.Fields{"component": "http", "error": err}).Error("shutdown failed")
	}
	log.WithField("component", "http").Info("shutdown complete")
	return nil
}

// connectRedis returns nil when redis is not configured or not reachable; rate
// limiting is then disabled.
func connectRedis(ctx context.Context, redisURL string, log *logrus.Entry) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		log.Warn("redis url missing; rate limiting disabled")
		return nil
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithField("error", err).Warn("redis url parse failed; rate limiting disabled")
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithField("error", err).Warn("redis ping failed; rate limiting disabled")
		client.Close()
		return nil
	}
	log.Info("redis connected")
	return client
}
