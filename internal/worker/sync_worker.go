package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bicdash/internal/amqp"
	"bicdash/internal/metrics"
	ports "bicdash/internal/sheets"
	"bicdash/internal/storage"
)

// Store is the part of the SQLite repository the worker needs.
type Store interface {
	GetViolation(ctx context.Context, id int64) (*storage.StoredViolation, error)
	GetPendingSyncViolations(ctx context.Context, limit int) ([]storage.PendingSyncViolation, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker copies manually recorded violations from SQLite to the
// upstream sheet.
type SyncWorker struct {
	storage   Store
	sheets    ports.ViolationWriter
	batchSize int
	metrics   *metrics.Metrics
}

func NewSyncWorker(storage Store, sheets ports.ViolationWriter, batchSize int, m *metrics.Metrics) *SyncWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &SyncWorker{storage: storage, sheets: sheets, batchSize: batchSize, metrics: m}
}

// HandleSyncMessage processes a single violation sync message from AMQP.
// Stale messages and rows that need no sync are acknowledged without
// touching the sheet.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ViolationSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	stored, err := w.storage.GetViolation(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get violation from storage: %w", err)
	}
	if !w.syncable(ctx, stored) {
		return nil
	}
	// A failed append bumps the stored version; the pending scan retries
	// those rows, so the stale message is dropped.
	if stored.Version > msg.Version {
		slog.InfoContext(ctx, "Sync message superseded, leaving row to the pending scan",
			"id", msg.ID, "message_version", msg.Version, "stored_version", stored.Version)
		return nil
	}

	if err := w.syncViolationToSheets(ctx, stored); err != nil {
		return fmt.Errorf("sync violation to sheets: %w", err)
	}
	return nil
}

// ProcessPendingViolations pushes violations that haven't been synced yet.
// It backs up the AMQP path in case messages are lost.
func (w *SyncWorker) ProcessPendingViolations(ctx context.Context) error {
	_, _, err := w.syncPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck runs a larger pending scan when the worker starts, to
// recover from missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.syncPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending violations found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) syncPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSyncViolations(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending violations: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending violations", "count", len(pending))
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		stored, err := w.storage.GetViolation(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get violation", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		// The AMQP consumer may have synced the row since the scan.
		if !w.syncable(ctx, stored) {
			continue
		}
		if err := w.syncViolationToSheets(ctx, stored); err != nil {
			slog.ErrorContext(ctx, "Failed to sync violation", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// syncable reports whether stored is a manual row not yet in the sheet.
func (w *SyncWorker) syncable(ctx context.Context, stored *storage.StoredViolation) bool {
	if stored.SyncStatus == storage.StatusSynced {
		slog.InfoContext(ctx, "Violation already synced, skipping", "id", stored.ID)
		return false
	}
	if stored.Source != storage.SourceManual {
		slog.WarnContext(ctx, "Sync requested for imported row, skipping", "id", stored.ID, "source", stored.Source)
		return false
	}
	return true
}

func (w *SyncWorker) syncViolationToSheets(ctx context.Context, stored *storage.StoredViolation) error {
	ref, err := w.sheets.AppendViolation(ctx, stored.Violation)
	w.metrics.SyncHandled(err)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, stored.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", stored.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is already in the sheet at this point.
	if err := w.storage.MarkSynced(ctx, stored.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", stored.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced violation",
		"id", stored.ID,
		"sheets_ref", ref,
		"account", stored.Violation.Account,
		"fine_cents", stored.Violation.Fine.Money.Cents)
	return nil
}
