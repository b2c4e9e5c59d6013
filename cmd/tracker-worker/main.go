package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/carlinf/finance-tracker/internal/amqp"
	"github.com/carlinf/finance-tracker/internal/backend"
	"github.com/carlinf/finance-tracker/internal/config"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/sheets"
	gsheet "github.com/carlinf/finance-tracker/internal/sheets/google"
	"github.com/carlinf/finance-tracker/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting tracker-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// The worker reads committed transactions from the same backend the
	// server writes to.
	opts, err := backend.OptionsFromConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).Create(context.Background(), opts)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	// Ledger target: Google Sheets when configured, otherwise nothing to do.
	var ledger sheets.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets client initialized", log.FieldSheetsRef, cfg.GoogleSpreadsheetID)
	} else {
		logger.Error("No GOOGLE_SPREADSHEET_ID provided, nothing to mirror")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(result.Store.Transactions(), ledger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionSync(gctx, func(msg *amqp.TransactionSyncMessage) error {
			return syncWorker.HandleSyncMessage(gctx, msg)
		})
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := result.Cleanup(shutdownCtx); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
