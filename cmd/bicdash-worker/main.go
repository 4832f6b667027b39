package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"bicdash/internal/amqp"
	"bicdash/internal/backend"
	"bicdash/internal/cli"
	applog "bicdash/internal/log"
	"bicdash/internal/metrics"
	"bicdash/internal/services"
	ports "bicdash/internal/sheets"
	"bicdash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting bicdash-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	// The spreadsheet is both the sync target and, when configured, the
	// refresh source. Without it the configured backend feeds the refresh.
	var (
		sheetsTarget ports.ViolationWriter
		importSource ports.Source
		importName   string
	)
	if cfg.SheetsConfigured() {
		sheetsClient, err := backend.NewSheetsClient(ctx, backendConfig)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		sheetsTarget, importSource, importName = sheetsClient, sheetsClient, string(backend.SheetsBackend)
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else if backendConfig.Type != backend.SQLiteBackend {
		result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
		if err != nil {
			logger.Error("Failed to create refresh source", "error", err, "backend", cfg.DataBackend)
			os.Exit(1)
		}
		defer result.Close()
		importSource, importName = result.Source, cfg.DataBackend
		logger.Info("Google Sheets disabled, refreshing from configured backend", "backend", cfg.DataBackend)
	} else {
		logger.Info("Google Sheets disabled and no refresh source - only bookkeeping will run")
	}

	var importer *services.Importer
	if importSource != nil {
		importer = services.NewImporter(importSource, importName, sqliteRepo, m)
	}

	var syncWorker *worker.SyncWorker
	if sheetsTarget != nil {
		syncWorker = worker.NewSyncWorker(sqliteRepo, sheetsTarget, cfg.SyncBatchSize, m)
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
		}
	}

	// AMQP only speeds up syncing; the periodic scan still covers lost
	// messages when the broker is down.
	var amqpClient *amqp.Client
	if syncWorker != nil && cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on periodic sync", "error", err)
		} else {
			go func() {
				err := amqpClient.ConsumeViolationSync(ctx, syncWorker.HandleSyncMessage)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", "error", err)
				}
			}()
		}
	}

	var syncer services.PendingSyncer
	if syncWorker != nil {
		syncer = syncWorker
	}
	processor := services.NewSyncProcessor(syncer, importer, services.SyncProcessorConfig{
		PollInterval:    cfg.SyncInterval,
		RefreshInterval: time.Hour,
		RefreshMaxAge:   cfg.RefreshMaxAge,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", m.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if amqpClient != nil && !amqpClient.IsHealthy() {
				http.Error(w, "amqp unavailable", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", "error", err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		cancel()
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", "error", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := sqliteRepo.Close(); err != nil {
			logger.Error("SQLite close error", "error", err)
		}
	})

	logger.Info("Worker running",
		"sync_enabled", syncWorker != nil,
		"refresh_enabled", importer != nil,
		"amqp_enabled", amqpClient != nil,
		"sync_interval", cfg.SyncInterval)
	cli.WaitForShutdown(shutdownCtx, done)
}
