package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abkawan/personal-banking/internal/api"
	"github.com/abkawan/personal-banking/internal/config"
	"github.com/abkawan/personal-banking/internal/db"
	"github.com/abkawan/personal-banking/internal/queue"
	"github.com/abkawan/personal-banking/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, ping, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	deps := api.Dependencies{Ping: ping, Location: loc, Logger: logger}

	// Events feed the statement projection; the ledger works without them.
	var publisher queue.Publisher
	if cfg.PublishEvents {
		logger.Info("connecting to RabbitMQ", zap.String("uri", config.Redact(cfg.RabbitMQURI)))
		rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI, logger)
		if err != nil {
			return err
		}
		defer rabbitmq.Close()

		breaker := queue.NewBreakerPublisher(rabbitmq, queue.BreakerConfig{
			ConsecutiveFailures: uint32(cfg.BreakerMaxFailures),
			Timeout:             cfg.BreakerTimeout,
			MaxRequests:         1,
		}, logger)
		publisher = breaker
		deps.PublisherState = breaker.State

		logger.Info("connecting to MongoDB", zap.String("uri", config.Redact(cfg.MongoURI)))
		mongodb, err := db.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer mongodb.Close(context.Background())
		deps.Statements = service.NewStatementService(store, mongodb, logger)
	}

	clock := service.SystemClock{}
	limits := service.NewLimitPolicy(store, clock, loc, logger)

	opts := service.DefaultOptions()
	opts.TxTimeout = cfg.TxTimeout
	opts.Retry.MaxRetries = cfg.MaxRetries
	opts.Retry.BaseDelay = cfg.RetryBaseDelay
	opts.RecordFailures = cfg.RecordFailedTransactions

	deps.Accounts = service.NewAccountService(store, clock, logger)
	deps.Limits = limits
	deps.Transactions = service.NewTransactionService(store, limits, publisher, opts, logger)
	deps.Insights = service.NewAggregationService(store, loc)

	router := mux.NewRouter()
	api.SetupRoutes(router, deps)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server shut down successfully")
	return nil
}

// openStore connects the authoritative ledger store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (db.Store, func(context.Context) error, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using the in-memory store; balances are lost on restart")
		return db.NewMemory(), nil, nil
	}

	logger.Info("connecting to PostgreSQL", zap.String("uri", config.Redact(cfg.PostgresURI)))
	postgres, err := db.NewPostgres(cfg.PostgresURI)
	if err != nil {
		return nil, nil, err
	}

	if err := postgres.InitSchema(ctx); err != nil {
		postgres.Close()
		return nil, nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return postgres, postgres.Ping, nil
}
