package main

import (
	"context"
	"os"
	"time"

	"costcheck/internal/amqp"
	"costcheck/internal/backend"
	"costcheck/internal/cli"
)

// costcheck-refresher publishes a dataset refresh message at a fixed
// interval so the worker keeps snapshots current without anyone pressing
// the refresh button.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting costcheck-refresher")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required: the refresher only publishes refresh messages")
		os.Exit(1)
	}

	// The backend is only created to learn the source identity the
	// worker expects in refresh messages.
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
	sourceIdentity := result.Loader.Identity()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Refresh schedule configured",
		"interval", cfg.RefreshInterval,
		"source", sourceIdentity)

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	// Publish once on startup so a fresh deployment refreshes promptly.
	if err := amqpClient.PublishDatasetRefresh(ctx, sourceIdentity); err != nil {
		logger.Error("Initial refresh publish failed", "error", err)
	} else {
		logger.Info("Initial refresh requested", "source", sourceIdentity)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := amqpClient.PublishDatasetRefresh(ctx, sourceIdentity); err != nil {
					logger.Error("Periodic refresh publish failed", "error", err)
				} else {
					logger.Info("Refresh requested",
						"source", sourceIdentity,
						"next_check", now.Add(cfg.RefreshInterval).Format("15:04:05"))
				}
			}
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		logger.Info("Shutting down refresher...")
	})
	cli.WaitForShutdown(shutdownCtx, done)
}
