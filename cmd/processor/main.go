package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abkawan/personal-banking/internal/config"
	"github.com/abkawan/personal-banking/internal/db"
	"github.com/abkawan/personal-banking/internal/queue"
	"github.com/abkawan/personal-banking/internal/service"
	"go.uber.org/zap"
)

// The processor projects committed ledger events into the statement store.
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("connecting to MongoDB", zap.String("uri", config.Redact(cfg.MongoURI)))
	mongodb, err := db.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongodb.Close(context.Background())

	logger.Info("connecting to RabbitMQ", zap.String("uri", config.Redact(cfg.RabbitMQURI)))
	rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitmq.Close()

	// Statements are keyed by the ids carried in each event; the ledger store
	// is only needed to serve reads.
	statements := service.NewStatementService(nil, mongodb, logger)

	logger.Info("starting transaction processor", zap.Int("prefetch", cfg.ProcessorPrefetch))
	err = rabbitmq.Consume(ctx, cfg.ProcessorPrefetch, statements.ProcessTransaction)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("processor stopped", zap.Error(err))
		return
	}

	logger.Info("processor shut down successfully")
}
