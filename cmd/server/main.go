package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	httpAdapter "github.com/coinflip/exchange-ledger/internal/adapter/http"
	"github.com/coinflip/exchange-ledger/internal/adapter/http/handler"
	postgresRepo "github.com/coinflip/exchange-ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/coinflip/exchange-ledger/internal/adapter/repository/redis"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/auth"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/config"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/eventpublisher"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/kafka"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/logger"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/metrics"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/postgres"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/redis"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/scheduler"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	log.Logger = appLogger

	ctx := context.Background()

	// Run migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Metrics
	appMetrics := metrics.New()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: cfg.DatabaseMinConns,
		Metrics:  appMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	balanceRepo := postgresRepo.NewBalanceRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	idempotencyRepo := postgresRepo.NewIdempotencyRepository(pool)
	userRepo := postgresRepo.NewUserRepository(pool)
	currencyRepo := postgresRepo.NewCurrencyRepository(pool)
	rateRepo := postgresRepo.NewRateRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	cache := redisRepo.NewCache(redisClient)
	retrier := postgresRepo.NewRetrier()
	idGen := postgresRepo.NewULIDGenerator()

	// Initialize use cases
	userUC := usecase.NewUserUseCase(userRepo, appMetrics)
	transferUC := usecase.NewTransferUseCase(
		txManager, balanceRepo, entryRepo, idempotencyRepo,
		userRepo, currencyRepo, outboxRepo, retrier, idGen, appMetrics)
	tradeUC := usecase.NewTradeUseCase(
		txManager, balanceRepo, entryRepo, idempotencyRepo,
		currencyRepo, rateRepo, outboxRepo, retrier, idGen, appMetrics)
	portfolioUC := usecase.NewPortfolioUseCase(balanceRepo, entryRepo, userRepo)
	rateUC := usecase.NewRateUseCase(currencyRepo, rateRepo, cache, appMetrics)
	ledgerUC := usecase.NewLedgerUseCase(balanceRepo, entryRepo, currencyRepo)

	// Authentication
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AuthHandler:      handler.NewAuthHandler(userUC, jwtManager),
		TransferHandler:  handler.NewTransferHandler(transferUC, userUC),
		TradeHandler:     handler.NewTradeHandler(tradeUC),
		PortfolioHandler: handler.NewPortfolioHandler(portfolioUC),
		RateHandler:      handler.NewRateHandler(rateUC),
		AdminHandler:     handler.NewAdminHandler(userUC, rateUC, ledgerUC),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		JWTManager:       jwtManager,
		Metrics:          appMetrics,
		Logger:           appLogger,
	})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	// Outbox publisher drains committed events to Kafka when brokers are
	// configured.
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()

		publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  kafkaPublisher,
			Metrics:    appMetrics,
		})

		go func() {
			if err := publisher.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()

		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("event publishing enabled")
	}

	// Daily rate history refresh
	sched := scheduler.New(slog.Default())
	if err := sched.AddJob(workerCtx, "rate-history-refresh", cfg.RateRefreshSchedule, rateUC.RefreshAllHistory); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule rate refresh")
	}
	sched.Start()
	defer sched.Stop()

	// Idempotency record cleanup, hourly
	if err := sched.AddJob(workerCtx, "idempotency-cleanup", "0 * * * *", func(ctx context.Context) error {
		_, err := idempotencyRepo.DeleteExpired(ctx)
		return err
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule idempotency cleanup")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
