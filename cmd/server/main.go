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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/handler"
	"github.com/elo-ledger/internal/kafka"
	"github.com/elo-ledger/internal/metrics"
	"github.com/elo-ledger/internal/notify"
	"github.com/elo-ledger/internal/postgres"
	"github.com/elo-ledger/internal/redis"
	"github.com/elo-ledger/internal/service"
	"github.com/elo-ledger/internal/sqlite"
	"github.com/elo-ledger/internal/store"
	"github.com/elo-ledger/internal/websocket"
	"github.com/elo-ledger/internal/worker"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open ledger store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	ledger, err := service.NewLedgerService(st, &cfg.Ledger, logger)
	if err != nil {
		logger.Error("invalid ledger configuration", "error", err)
		os.Exit(1)
	}
	ledger.SetMetrics(m)

	// Ranking cache
	var syncWorker *worker.SyncWorker
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		cache, err := redis.NewRankingCache(ctx, &cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, serving rankings from the store", "error", err)
		} else {
			defer cache.Close()
			ledger.SetCache(cache)
			syncWorker = worker.NewSyncWorker(ledger, &cfg.Sync, logger)
		}
	}

	// Notifications
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	sinks := []notify.Sink{{Name: "websocket", Notifier: wsHub}}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.Sink{Name: "webhook", Notifier: notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)})
	}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, notifications stay local", "error", err)
		} else {
			defer producer.Close()
			sinks = append(sinks, notify.Sink{Name: "kafka", Notifier: producer})
		}
	}
	ledger.SetNotifier(notify.NewMulti(m, logger, sinks...), cfg.Notify.OriginSource)

	if syncWorker != nil && cfg.Sync.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			logger.Error("failed to start sync worker", "error", err)
			os.Exit(1)
		}
	}

	// Match ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.MatchTopic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, ledger, m, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	httpHandler := handler.NewHandler(ledger, wsHub, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	wsHub.Stop()
	logger.Info("server stopped")
}

// openStore opens the configured ledger store and brings its schema up to date
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return repo, nil
	case config.DriverSQLite:
		logger.Info("opening SQLite ledger", "path", cfg.Storage.SQLitePath)
		return sqlite.Open(ctx, cfg.Storage.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
