package main

import (
	"context"
	"os"
	"time"

	"reina/internal/amqp"
	"reina/internal/cli"
	"reina/internal/log"
	"reina/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(context.Background())
	if err != nil {
		cli.SetupLogger("info", os.Stdout).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	logger.Info("Starting reina-worker", log.FieldOperation, log.OpStartup,
		"session_backend", cfg.SessionBackend,
		"amqp_enabled", cfg.AMQPEnabled(),
		"sheets_sync", cfg.SheetsAutoSync,
		"interval", cfg.BudgetCheckInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// The worker acts on behalf of the session stored by `reina login`.
	app, err := cli.Open(ctx, cfg, logger, os.Stdout)
	if err != nil {
		logger.Error("Failed to initialize", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.RequireLogin(); err != nil {
		logger.Error("No stored session", log.FieldError, err)
		os.Exit(1)
	}

	var consumer worker.Consumer
	switch {
	case app.Publisher != nil:
		consumer = app.Publisher
	case cfg.AMQPEnabled():
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	default:
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	if cfg.SheetsAutoSync {
		exporter, _, err := app.Exporter(ctx, false)
		switch {
		case err != nil:
			logger.Error("Sheet sync disabled", log.FieldError, err)
			os.Exit(1)
		case consumer == nil:
			logger.Warn("Sheet sync needs AMQP events, skipping")
		default:
			consumer = worker.NewSyncWorker(app.Expenses, exporter, logger).Wrap(consumer)
		}
	}

	alerts := worker.NewAlertWorker(app.Budget, cfg.BudgetCheckInterval, logger)
	if err := alerts.Run(ctx, consumer); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
