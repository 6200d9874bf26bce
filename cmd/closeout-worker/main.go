package main

import (
	"context"
	"errors"
	"os"
	"time"

	"closeout/internal/amqp"
	"closeout/internal/cli"
	"closeout/internal/config"
	ophttp "closeout/internal/http"
	"closeout/internal/log"
)

func main() {
	cfg, err := cli.LoadAndValidateConfig(config.Options{})
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	logger.Info("Starting closeout-worker")

	if cfg.AMQP.URL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	// Initialize AMQP client for consuming requests and announcing completions
	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:          cfg.AMQP.URL,
		Exchange:     cfg.AMQP.Exchange,
		Queue:        cfg.AMQP.Queue,
		CompletedKey: cfg.AMQP.CompletedKey,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	app, err := cli.Wire(context.Background(), cfg, logger, "", amqpClient)
	if err != nil {
		logger.Error("Failed to initialize report pipeline", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	// Health, readiness and metrics endpoints (optional)
	var ops *ophttp.Server
	if cfg.OpsAddr != "" {
		checks := map[string]ophttp.Check{"amqp": amqpClient.Ping}
		if app.Ledger != nil {
			checks["ledger"] = app.Ledger.Ping
		}
		ops = ophttp.NewServer(cfg.OpsAddr, app.Metrics.Registry(), checks, logger)
		ops.Start()
	}

	// Setup graceful shutdown
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if ops == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Ops server shutdown failed", log.FieldError, err)
		}
	})
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := amqpClient.ConsumeReportRequests(consumeCtx, app.Worker.HandleReportRequest); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				os.Exit(1)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
