package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"bicdash/internal/backend"
	"bicdash/internal/cache"
	"bicdash/internal/cli"
	apphttp "bicdash/internal/http"
	applog "bicdash/internal/log"
	"bicdash/internal/metrics"
	"bicdash/internal/middleware/ratelimit"
	"bicdash/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()
	datasets := services.NewDatasetService(result.Source, services.DatasetConfig{
		CutoffYear: cfg.CutoffYear,
		Normalizer: cli.LoadRules(logger, cfg.RulesFile),
		TTL:        cfg.SnapshotTTL,
	}, m)

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(datasets.Cache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Datasets:       datasets,
		Writer:         result.Writer,
		Logger:         logger,
		Metrics:        m,
		Ready:          result.Ready,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.WriteRateLimit},
		TrustedProxies: cfg.TrustedProxies,
	})

	// Warm the snapshot so the first request does not pay for the load.
	go func() {
		if _, err := datasets.Snapshot(ctx); err != nil {
			logger.Warn("Initial dataset load failed", "error", err)
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting bicdash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"read_only", result.Writer == nil,
		"cutoff_year", cfg.CutoffYear)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
