package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingSyncer pushes manually recorded violations that are still pending
// to the upstream sheet.
type PendingSyncer interface {
	ProcessPendingViolations(ctx context.Context) error
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often pending violations are retried (default: 30s).
	PollInterval time.Duration

	// RefreshInterval is how often the import age is checked (default: 1h).
	RefreshInterval time.Duration

	// RefreshMaxAge is the age after which the local copy is re-imported
	// (default: 24h).
	RefreshMaxAge time.Duration
}

// DefaultSyncProcessorConfig returns the worker defaults.
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    30 * time.Second,
		RefreshInterval: time.Hour,
		RefreshMaxAge:   24 * time.Hour,
	}
}

// SyncProcessor runs the periodic jobs of the worker: the pending-sync scan
// that backs up lost AMQP messages and the dataset refresh.
type SyncProcessor struct {
	syncer   PendingSyncer
	importer *Importer
	config   SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a processor. A nil importer disables refresh.
func NewSyncProcessor(syncer PendingSyncer, importer *Importer, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{syncer: syncer, importer: importer, config: config}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"refresh_interval", p.config.RefreshInterval,
		"refresh_enabled", p.importer != nil)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	refreshTicker := time.NewTicker(p.config.RefreshInterval)
	defer refreshTicker.Stop()

	p.refresh(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.poll(ctx)
		case <-refreshTicker.C:
			p.refresh(ctx)
		}
	}
}

func (p *SyncProcessor) poll(ctx context.Context) {
	if p.syncer == nil {
		return
	}
	if err := p.syncer.ProcessPendingViolations(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to process pending violations", "error", err)
	}
}

func (p *SyncProcessor) refresh(ctx context.Context) {
	if p.importer == nil {
		return
	}
	if _, err := p.importer.RunIfStale(ctx, p.config.RefreshMaxAge); err != nil {
		slog.ErrorContext(ctx, "Dataset refresh failed", "error", err)
	}
}
