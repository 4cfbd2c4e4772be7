package main

import (
	"context"
	"os"
	"time"

	"costcheck/internal/amqp"
	"costcheck/internal/backend"
	"costcheck/internal/cli"
	"costcheck/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting costcheck-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	// The worker exists to refresh snapshots, so a store is not optional
	// here the way it is for the server.
	store := result.Store
	if store == nil {
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		store = repo
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	refreshWorker := worker.NewRefreshWorker(result.Loader, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Make sure a snapshot exists before consuming; a fresh database
	// should not wait for the first queue message.
	logger.Info("Performing startup refresh check...")
	if err := refreshWorker.StartupRefreshCheck(ctx); err != nil {
		logger.Error("Startup refresh check failed", "error", err)
		// Keep running; the next refresh message gets another chance.
	}

	go func() {
		handler := func(msg *amqp.DatasetRefreshMessage) error {
			return refreshWorker.HandleRefreshMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeDatasetRefresh(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		logger.Info("Shutting down worker...")
	})

	select {
	case <-shutdownCtx.Done():
		<-done
	case <-ctx.Done():
		logger.Info("Consumer stopped")
	}
}
