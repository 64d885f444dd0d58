package main

import (
	"context"
	"flag"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	applog "budget/internal/log"
	"budget/internal/services"
)

// exitPendingConfirmation signals that the backlog exceeds the catch-up limit
// and the run must be repeated with -allow-extended-catchup.
const exitPendingConfirmation = 2

var version = "dev"

func main() {
	once := flag.Bool("once", false, "process once and exit instead of running on an interval")
	allowExtended := flag.Bool("allow-extended-catchup", false, "process a backlog larger than the catch-up limit")
	flag.Parse()

	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentRecurring)
	logger.Info("Starting recurring-worker", "version", version, "once", *once)

	cfg := cli.LoadAndValidateConfig(logger)
	reporter := cli.InitTelemetry(logger, cfg, version)
	defer reporter.Flush(2 * time.Second)

	store := cli.InitStore(context.Background(), logger, cfg)
	defer func() {
		if store.Cleanup != nil {
			_ = store.Cleanup()
		}
	}()

	// The sheets-worker consumes these events and appends rows to the export.
	var publisher services.TransactionPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without the sheets export", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	processor := services.NewRecurringProcessor(store.Store,
		services.WithLimits(cfg.RecurringMaxCatchupMonths, cfg.RecurringMaxMonthIterations),
		services.WithConcurrency(cfg.RecurringConcurrency),
		services.WithPublisher(publisher),
		services.WithErrorReporter(reporter),
	)
	scheduler := services.NewRecurringScheduler(processor, services.SchedulerConfig{
		Interval:             cfg.RecurringInterval,
		AllowExtendedCatchup: cfg.RecurringAllowExtendedCatchup || *allowExtended,
	})

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		ok := scheduler.RunOnce(ctx)
		cancel()
		if !ok {
			logger.Warn("Backlog exceeds the catch-up limit; rerun with -allow-extended-catchup to process it",
				"limit", processor.MaxCatchupMonths())
			reporter.Flush(2 * time.Second)
			if store.Cleanup != nil {
				_ = store.Cleanup()
			}
			os.Exit(exitPendingConfirmation)
		}
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Recurring scheduler did not stop in time", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start recurring scheduler", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
