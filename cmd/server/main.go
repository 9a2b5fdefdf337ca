package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/handler"
	"github.com/reputation-engine/internal/kafka"
	"github.com/reputation-engine/internal/memstore"
	"github.com/reputation-engine/internal/metrics"
	"github.com/reputation-engine/internal/postgres"
	"github.com/reputation-engine/internal/redis"
	"github.com/reputation-engine/internal/service"
	"github.com/reputation-engine/internal/websocket"
	"github.com/reputation-engine/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	loadErr := err
	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Setup structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	if loadErr != nil {
		logger.Warn("failed to load config file, using defaults", "error", loadErr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(cfg.Metrics.Namespace)

	// Initialize the store
	var store service.Store
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := connectPostgres(ctx, &cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		logger.Info("connected to PostgreSQL")

		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = repo
	} else {
		logger.Warn("PostgreSQL disabled, using in-memory store")
		store = memstore.New()
	}

	// Initialize Redis
	var (
		redisClient *goredis.Client
		standings   *redis.Standings
		lease       *redis.Lease
	)
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisClient, err = connectRedis(ctx, &cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without standings mirror", "error", err)
		} else {
			defer redisClient.Close()
			standings = redis.NewStandings(redisClient, &cfg.Redis, logger)
			lease = redis.NewLease(redisClient, cfg.Redis.KeyPrefix)
			logger.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	audit := service.NewAuditService(store, m, logger)
	notifications := service.NewNotificationService(store, m, logger)
	awards := service.NewAwardService(store, notifications, audit, m, logger)
	awards.SetHub(wsHub)
	ledger := service.NewLedgerService(store, audit, m, &cfg.Ledger, logger)
	ledger.SetHub(wsHub)
	if standings != nil {
		ledger.SetStandings(standings)
	}
	evaluator := service.NewEvaluator(store, store, awards, domain.DefaultRules(), m, logger)

	if err := awards.EnsureDefaultBadges(ctx); err != nil {
		logger.Error("failed to seed default badges", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka publisher for notification events
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		publisher, err = kafka.NewPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, notifications stay local", "error", err)
		} else {
			notifications.SetPublisher(publisher)
		}
	}

	// Initialize sync worker
	var syncWorker *worker.SyncWorker
	if standings != nil {
		syncWorker = worker.NewSyncWorker(store, standings, &cfg.Sync, logger)

		// Reconcile the mirror on startup
		logger.Info("syncing standings from database to Redis")
		if err := syncWorker.RunOnce(ctx); err != nil {
			logger.Warn("failed to sync standings on startup", "error", err)
		}

		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize scheduled badge evaluation
	var evaluatorWorker *worker.EvaluatorWorker
	if cfg.Evaluator.Enabled {
		var locker worker.Locker
		if lease != nil {
			locker = lease
		}
		evaluatorWorker = worker.NewEvaluatorWorker(evaluator, locker, &cfg.Evaluator, logger)
		if err := evaluatorWorker.Start(ctx); err != nil {
			logger.Error("failed to start evaluator worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for point ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.PointsTopic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, ledger, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(handler.Services{
		Users:         service.NewUserService(store, audit, logger),
		Ledger:        ledger,
		Awards:        awards,
		Evaluator:     evaluator,
		Ranking:       service.NewRankingService(store, audit, m, &cfg.Ranking, logger),
		Audit:         audit,
		Notifications: notifications,
	}, store, wsHub, m, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if evaluatorWorker != nil {
		if err := evaluatorWorker.Stop(); err != nil {
			logger.Error("failed to stop evaluator worker", "error", err)
		}
	}

	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close Kafka publisher", "error", err)
		}
	}

	logger.Info("server stopped")
}

// connectPostgres opens the repository, retrying with exponential backoff
func connectPostgres(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*postgres.Repository, error) {
	var repo *postgres.Repository
	operation := func() error {
		var err error
		repo, err = postgres.NewRepository(ctx, cfg, logger)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ConnectRetries)), ctx)
	notify := func(err error, next time.Duration) {
		logger.Warn("PostgreSQL not ready, retrying", "error", err, "retry_in", next)
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}
	return repo, nil
}

// connectRedis opens a Redis client, retrying with exponential backoff
func connectRedis(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*goredis.Client, error) {
	var client *goredis.Client
	operation := func() error {
		var err error
		client, err = redis.NewClient(ctx, cfg)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	notify := func(err error, next time.Duration) {
		logger.Warn("Redis not ready, retrying", "error", err, "retry_in", next)
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}
	return client, nil
}
