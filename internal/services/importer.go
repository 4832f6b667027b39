package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bicdash/internal/metrics"
	ports "bicdash/internal/sheets"
	"bicdash/internal/storage"
	"bicdash/internal/tabular"
)

// ImportStore is the part of the SQLite repository the importer needs.
type ImportStore interface {
	ImportDataset(ctx context.Context, source string, vs tabular.Violations, cs tabular.Complaints) (storage.Import, error)
	LastImport(ctx context.Context) (storage.Import, bool, error)
}

// Importer copies an upstream source into the local store.
type Importer struct {
	source     ports.Source
	sourceName string
	store      ImportStore
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewImporter(source ports.Source, sourceName string, store ImportStore, m *metrics.Metrics) *Importer {
	return &Importer{source: source, sourceName: sourceName, store: store, metrics: m, now: time.Now}
}

// Run replaces the imported rows with the current upstream content.
func (i *Importer) Run(ctx context.Context) (storage.Import, error) {
	vs, cs, err := FetchTables(ctx, i.source)
	if err != nil {
		i.metrics.ImportFinished(err)
		return storage.Import{}, fmt.Errorf("fetch %s: %w", i.sourceName, err)
	}
	imp, err := i.store.ImportDataset(ctx, i.sourceName, vs, cs)
	i.metrics.ImportFinished(err)
	if err != nil {
		return storage.Import{}, err
	}
	return imp, nil
}

// RunIfStale imports only when no import exists or the last one is older
// than maxAge. It reports whether an import ran.
func (i *Importer) RunIfStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	last, ok, err := i.store.LastImport(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		age := i.now().Sub(last.ImportedAt)
		if age < maxAge {
			slog.DebugContext(ctx, "Local dataset is fresh",
				"last_import", last.ImportedAt.Format(time.RFC3339),
				"age", age.Round(time.Second))
			return false, nil
		}
		slog.InfoContext(ctx, "Local dataset is stale, re-importing",
			"last_import", last.ImportedAt.Format(time.RFC3339),
			"age", age.Round(time.Minute))
	} else {
		slog.InfoContext(ctx, "No previous import found, importing", "source", i.sourceName)
	}
	if _, err := i.Run(ctx); err != nil {
		return false, err
	}
	return true, nil
}
