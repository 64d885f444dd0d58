package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	apphttp "budget/internal/http"
	applog "budget/internal/log"
	"budget/internal/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	logger.Info("Starting budget server", "version", version)

	cfg := cli.LoadAndValidateConfig(logger)
	reporter := cli.InitTelemetry(logger, cfg, version)
	defer reporter.Flush(2 * time.Second)

	store := cli.InitStore(context.Background(), logger, cfg)

	var publisher services.TransactionPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without the sheets export", "error", err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - transactions will not be exported")
	}

	processor := services.NewRecurringProcessor(store.Store,
		services.WithLimits(cfg.RecurringMaxCatchupMonths, cfg.RecurringMaxMonthIterations),
		services.WithConcurrency(cfg.RecurringConcurrency),
		services.WithPublisher(publisher),
		services.WithErrorReporter(reporter),
	)
	scheduler := services.NewRecurringScheduler(processor, services.SchedulerConfig{
		Interval:             cfg.RecurringInterval,
		AllowExtendedCatchup: cfg.RecurringAllowExtendedCatchup,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Recurring:          processor,
		Status:             services.NewRecurringStatusService(store.Store),
		Expenses:           services.NewExpenseService(store.Store, publisher),
		Catalog:            store.Store,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Recurring scheduler did not stop in time", "error", err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Failed to close ledger store", "error", err)
			}
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start recurring scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
