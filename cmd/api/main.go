package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medwait/waitline/backend/internal/adapters/cache"
	"github.com/medwait/waitline/backend/internal/adapters/database"
	"github.com/medwait/waitline/backend/internal/adapters/events"
	"github.com/medwait/waitline/backend/internal/api/handlers"
	"github.com/medwait/waitline/backend/internal/api/routes"
	"github.com/medwait/waitline/backend/internal/application/services"
	"github.com/medwait/waitline/backend/internal/domain/providers"
	"github.com/medwait/waitline/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/medwait/waitline/backend/internal/infrastructure/clients/redis"
	"github.com/medwait/waitline/backend/internal/infrastructure/notifications"
	"github.com/medwait/waitline/backend/internal/infrastructure/observability"
	"github.com/medwait/waitline/backend/pkg/config"
	"github.com/medwait/waitline/backend/pkg/secrets"
)

func main() {
	// Vault-held secrets (database password, SMS gateway key) land in the
	// environment before configuration is read
	vaultResult, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))
	logger := observability.GetLogger()
	if vaultResult.Enabled {
		logger.Info().
			Str("path", vaultResult.Path).
			Int("loaded", vaultResult.Loaded).
			Int("skipped", vaultResult.Skipped).
			Msg("vault secrets applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional: without it the queue runs but real-time events and
	// the stats cache are off
	var eventBus providers.EventBus
	var cacheProvider providers.CacheProvider
	redisClient, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize Redis client, queue events disabled")
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	queueRepo := database.NewQueueAdapter(pgClient)
	if cacheProvider != nil {
		queueRepo = database.NewCachedQueueAdapter(queueRepo, cacheProvider)
	}
	notificationRepo := database.NewNotificationAdapter(pgClient)

	notificationService := services.NewNotificationService(notificationRepo, &cfg.Notification, metrics)
	queueService := services.NewQueueService(queueRepo, notificationService, eventBus, metrics, cfg.Queue)

	// The dispatcher drains the notification outbox; without gateway
	// credentials the queue still runs and records stay pending
	sender, err := notifications.NewSMSGatewaySender(&cfg.Notification)
	if err != nil {
		logger.Warn().Err(err).Msg("SMS sender not configured, notification dispatch disabled")
	} else {
		dispatcher := services.NewNotificationDispatcher(notificationRepo, sender, &cfg.Notification, metrics)
		go dispatcher.Run(ctx)
	}

	queueHandler := handlers.NewQueueHandler(queueService)
	router := routes.NewRouter(queueHandler, metrics)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("waitline api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
}
