package backend

import (
	"context"

	"costcheck/internal/source"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the wired loader, an optional snapshot store for
// persisting successful loads, and an optional cleanup function.
type BackendResult struct {
	Loader  source.DatasetLoader
	Store   source.SnapshotStore
	Cleanup CleanupFunc
}

// Factory creates dataset backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	// Backend type
	Type BackendType

	// CSV specific
	CostCSVPath  string
	CSVDelimiter rune

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Sample specific
	SampleSize int
	SampleSeed int64

	// Applied on every load
	DeriveCombinedTotal bool
}

// BackendType represents the type of dataset backend.
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	SampleBackend BackendType = "sample"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SQLiteBackend, SheetsBackend, SampleBackend:
		return true
	default:
		return false
	}
}
