package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	applog "budget/internal/log"
	gsheet "budget/internal/sheets/google"
	"budget/internal/worker"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting sheets-worker", "version", version)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateSheetsExport(); err != nil {
		logger.Error("Sheets export configuration invalid", "error", err)
		os.Exit(1)
	}
	reporter := cli.InitTelemetry(logger, cfg, version)
	defer reporter.Flush(2 * time.Second)

	creds, err := cfg.GoogleCredentials()
	if err != nil {
		logger.Error("Failed to load Google credentials", "error", err)
		os.Exit(1)
	}
	sheetsClient, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: creds,
		Logger:          logger.WithComponent(applog.ComponentSheets).Logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// The ledger is re-read per message so deleted transactions are skipped.
	store := cli.InitStore(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(store.Store, sheetsClient, reporter)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		_ = amqpClient.Close()
		if store.Cleanup != nil {
			_ = store.Cleanup()
		}
	})

	go func() {
		err := amqpClient.Consume(ctx, syncWorker.HandleTransactionRecorded)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			reporter.CaptureError(ctx, err, map[string]string{"component": applog.ComponentAMQP})
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
