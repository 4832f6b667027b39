package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bicdash/internal/analytics"
	"bicdash/internal/cache"
	"bicdash/internal/labels"
	"bicdash/internal/metrics"
	ports "bicdash/internal/sheets"
	"bicdash/internal/tabular"
)

const snapshotKey = "snapshot"

// Snapshot is a prepared dataset with the moment it was loaded.
type Snapshot struct {
	*analytics.Dataset
	LoadedAt time.Time
	// Read is the number of non-blank source rows per table before any
	// exclusion.
	ViolationsRead int
	ComplaintsRead int
}

// DatasetConfig tunes the snapshot service.
type DatasetConfig struct {
	CutoffYear int
	Normalizer *labels.Normalizer
	// TTL bounds how long a snapshot is served before reloading. Zero keeps
	// it until Invalidate.
	TTL time.Duration
}

// DatasetService loads both tables from a source, prepares them and caches
// the result.
type DatasetService struct {
	source     ports.Source
	cutoff     int
	normalizer *labels.Normalizer
	cache      *cache.LRUCache[*Snapshot]
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewDatasetService(source ports.Source, cfg DatasetConfig, m *metrics.Metrics) *DatasetService {
	if cfg.CutoffYear == 0 {
		cfg.CutoffYear = analytics.DefaultCutoffYear
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = labels.Default()
	}
	return &DatasetService{
		source:     source,
		cutoff:     cfg.CutoffYear,
		normalizer: cfg.Normalizer,
		cache:      cache.NewLRUCache[*Snapshot](1, cfg.TTL),
		metrics:    m,
		now:        time.Now,
	}
}

// Cache exposes the snapshot cache so a cache.Manager can sweep it.
func (s *DatasetService) Cache() *cache.LRUCache[*Snapshot] {
	return s.cache
}

// Normalizer returns the label rules in use.
func (s *DatasetService) Normalizer() *labels.Normalizer {
	return s.normalizer
}

// Snapshot returns the cached snapshot, loading it if absent or expired.
// Concurrent callers share one load.
func (s *DatasetService) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		s.metrics.SnapshotLookup(true)
		return snap, nil
	}
	s.metrics.SnapshotLookup(false)
	return s.cache.GetOrLoad(snapshotKey, func() (*Snapshot, error) {
		return s.Load(ctx)
	})
}

// Invalidate drops the cached snapshot; the next Snapshot call reloads.
func (s *DatasetService) Invalidate() {
	s.cache.Purge()
}

// Load reads both tables concurrently and prepares a fresh snapshot,
// bypassing the cache.
func (s *DatasetService) Load(ctx context.Context) (*Snapshot, error) {
	start := s.now()
	vs, cs, err := FetchTables(ctx, s.source)
	if err != nil {
		s.metrics.ObserveDatasetLoad(time.Since(start), 0, 0, nil, nil, err)
		return nil, err
	}

	ds := analytics.Prepare(vs.Rows, cs.Rows, s.cutoff, s.normalizer)
	ds.Excluded.Merge(vs.Excluded)
	ds.ExcludedComplaints.Merge(cs.Excluded)

	snap := &Snapshot{
		Dataset:        ds,
		LoadedAt:       s.now(),
		ViolationsRead: vs.Read,
		ComplaintsRead: cs.Read,
	}
	s.metrics.ObserveDatasetLoad(time.Since(start), len(ds.Violations), len(ds.Complaints), ds.Excluded, ds.ExcludedComplaints, nil)
	slog.InfoContext(ctx, "Dataset snapshot prepared",
		"component", "dataset",
		"violations", len(ds.Violations),
		"complaints", len(ds.Complaints),
		"excluded", ds.Excluded.Total(),
		"excluded_complaints", ds.ExcludedComplaints.Total(),
		"cutoff", s.cutoff)
	return snap, nil
}

// FetchTables reads the violations and complaints tables in parallel.
func FetchTables(ctx context.Context, source ports.Source) (tabular.Violations, tabular.Complaints, error) {
	var (
		vs tabular.Violations
		cs tabular.Complaints
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vs, err = source.ListViolations(gctx)
		if err != nil {
			return fmt.Errorf("load violations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cs, err = source.ListComplaints(gctx)
		if err != nil {
			return fmt.Errorf("load complaints: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return tabular.Violations{}, tabular.Complaints{}, err
	}
	return vs, cs, nil
}
