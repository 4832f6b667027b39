package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"bicdash/internal/core"
	ports "bicdash/internal/sheets"
)

// LocalStore persists manually recorded violations before they are synced.
type LocalStore interface {
	ports.ViolationWriter
	Close() error
}

// SyncPublisher announces a stored violation to the sync worker.
type SyncPublisher interface {
	PublishViolationSync(ctx context.Context, id, version int64) error
	Close() error
}

// ViolationService records violations locally and publishes a sync message
// for each one. It satisfies sheets.ViolationWriter.
type ViolationService struct {
	storage   LocalStore
	publisher SyncPublisher
}

var _ ports.ViolationWriter = (*ViolationService)(nil)

// NewViolationService wires the store and an optional publisher.
func NewViolationService(storage LocalStore, publisher SyncPublisher) *ViolationService {
	return &ViolationService{storage: storage, publisher: publisher}
}

// AppendViolation saves v to the local store and publishes a sync message.
// A failed publish is logged only: the pending row is picked up by the
// worker's periodic scan.
func (s *ViolationService) AppendViolation(ctx context.Context, v core.Violation) (string, error) {
	ref, err := s.storage.AppendViolation(ctx, v)
	if err != nil {
		return "", fmt.Errorf("save violation: %w", err)
	}

	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to parse violation ID", "ref", ref, "error", err)
		return ref, nil
	}

	if err := s.publishSyncMessage(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
	return ref, nil
}

func (s *ViolationService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishViolationSync(ctx, id, version)
}

// Close closes both storage and AMQP connections
func (s *ViolationService) Close() error {
	var errs []error
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close violation service: %v", errs)
	}
	return nil
}
