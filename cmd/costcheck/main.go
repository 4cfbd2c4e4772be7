package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"costcheck/internal/amqp"
	"costcheck/internal/backend"
	"costcheck/internal/cli"
	apphttp "costcheck/internal/http"
	"costcheck/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting costcheck server")

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

	opts := []services.Option{
		services.WithSample(cfg.SampleSize, cfg.SampleSeed),
	}
	if result.Store != nil {
		opts = append(opts, services.WithSnapshotStore(result.Store))
	}

	// With AMQP configured, refresh requests go through the queue and a
	// worker performs the reload. Without it the server reloads inline.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, refreshing inline instead", "error", err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithRefreshPublisher(amqpClient))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	datasets := services.NewDatasetService(result.Loader, opts...)

	// Load eagerly so the first request is not the one paying for it.
	// A failed load already degraded to a snapshot or sample inside.
	if _, err := datasets.Reload(context.Background()); err != nil {
		logger.Error("Failed to load cost data", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(cfg.Addr(), datasets,
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithChartCache(cfg.ChartCacheSize, cfg.ChartCacheTTL))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting costcheck server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"source", datasets.SourceIdentity())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
