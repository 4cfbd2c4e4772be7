package backend

import (
	"context"
	"fmt"
	"log/slog"

	"costcheck/internal/adapters"
	"costcheck/internal/core"
	"costcheck/internal/source/csvfile"
	"costcheck/internal/source/google"
	"costcheck/internal/source/sample"
	"costcheck/internal/storage"
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
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case SampleBackend:
		return f.createSampleBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) loadOptions(config Config) core.LoadOptions {
	return core.LoadOptions{
		Comma:               config.CSVDelimiter,
		DeriveCombinedTotal: config.DeriveCombinedTotal,
	}
}

// createCSVBackend wires a file or directory loader, backed by a snapshot
// store when a database path is configured.
func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	loader := csvfile.New(config.CostCSVPath, f.loadOptions(config))

	result := &BackendResult{Loader: loader}

	if config.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			f.logger.Warn("Failed to open snapshot store, continuing without snapshots", "error", err)
		} else {
			result.Store = repo
			result.Cleanup = repo.Close
		}
	}

	f.logger.Info("Initialized CSV backend",
		"path", config.CostCSVPath,
		"snapshots_enabled", result.Store != nil)

	return result, nil
}

// createSQLiteBackend serves the newest persisted snapshot; workers keep
// it fresh.
func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	loader := adapters.NewSQLiteAdapter(repo, "")

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Loader:  loader,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.NewFromEnv(ctx, f.loadOptions(config))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	result := &BackendResult{Loader: cli}

	if config.SQLiteDBPath != "" {
		repo, rerr := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if rerr != nil {
			f.logger.Warn("Failed to open snapshot store, continuing without snapshots", "error", rerr)
		} else {
			result.Store = repo
			result.Cleanup = repo.Close
		}
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName,
		"snapshots_enabled", result.Store != nil)

	return result, nil
}

func (f *DefaultFactory) createSampleBackend(config Config) (*BackendResult, error) {
	loader := sample.New(config.SampleSize, config.SampleSeed)

	f.logger.Info("Initialized sample backend",
		"size", config.SampleSize,
		"seed", config.SampleSeed)

	return &BackendResult{Loader: loader}, nil
}
