package backend

import (
	"context"
	"fmt"
	"log/slog"

	"bicdash/internal/amqp"
	"bicdash/internal/services"
	"bicdash/internal/sheets/csvfeed"
	gsheet "bicdash/internal/sheets/google"
	"bicdash/internal/sheets/memory"
	"bicdash/internal/sheets/workbook"
	"bicdash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case CSVBackend:
		return f.createCSVBackend(config)
	case XLSXBackend:
		return f.createXLSXBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createSQLiteBackend serves reads from the local copy and records new
// violations through the violation service, which publishes sync messages.
func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it the worker's pending scan still syncs.
	var publisher services.SyncPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	violationService := services.NewViolationService(sqliteRepo, publisher)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Source:  sqliteRepo,
		Writer:  violationService,
		Cleanup: violationService.Close,
		Ready:   sqliteRepo.Ping,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := NewSheetsClient(ctx, config)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized Google Sheets backend",
		"violations_sheet", config.ViolationsSheetName,
		"complaints_sheet", config.ComplaintsSheetName)
	return &BackendResult{Source: cli, Writer: cli}, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	feed, err := csvfeed.New(config.ViolationsCSVURL, config.ComplaintsCSVURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV feed: %w", err)
	}
	f.logger.Info("Initialized CSV feed backend",
		"violations_url", config.ViolationsCSVURL,
		"complaints_url", config.ComplaintsCSVURL)
	return &BackendResult{Source: feed}, nil
}

func (f *DefaultFactory) createXLSXBackend(config Config) (*BackendResult, error) {
	wb, err := workbook.Open(config.WorkbookPath, config.ViolationsSheetName, config.ComplaintsSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	f.logger.Info("Initialized XLSX backend", "path", config.WorkbookPath)
	return &BackendResult{Source: wb, Writer: wb}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend from %s: %w", dataDir, err)
	}
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return &BackendResult{Source: store, Writer: store}, nil
}

// NewSheetsClient opens the configured spreadsheet. The worker uses it as
// the sync target whatever DATA_BACKEND says.
func NewSheetsClient(ctx context.Context, config Config) (*gsheet.Client, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		ViolationsSheet: config.ViolationsSheetName,
		ComplaintsSheet: config.ComplaintsSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}
