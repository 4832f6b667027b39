package backend

import (
	"context"

	ports "bicdash/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is what a factory hands to the binaries: a readable source,
// an optional writer for new violations, and cleanup.
type BackendResult struct {
	Source ports.Source
	// Writer is nil for read-only backends such as a remote CSV feed.
	Writer  ports.ViolationWriter
	Cleanup CleanupFunc
	// Ready checks the backend for /readyz; nil when there is nothing to ping.
	Ready func(ctx context.Context) error
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	ViolationsSheetName      string
	ComplaintsSheetName      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// CSV feed specific
	ViolationsCSVURL string
	ComplaintsCSVURL string

	// XLSX specific
	WorkbookPath string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	CSVBackend    BackendType = "csv"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
	XLSXBackend   BackendType = "xlsx"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, CSVBackend, SheetsBackend, SQLiteBackend, XLSXBackend:
		return true
	default:
		return false
	}
}

// Writable reports whether the backend accepts new violations.
func (bt BackendType) Writable() bool {
	return bt != CSVBackend
}
