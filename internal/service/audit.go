package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/port"
)

var auditTracer = otel.Tracer("service/audit")

// AuditService is the append-only sink every core operation writes to.
// Record never surfaces an error to the caller: a failed append is
// logged and counted, never allowed to fail the financial operation
// that produced it.
type AuditService struct {
	store   port.AuditStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAuditService creates the audit sink.
func NewAuditService(store port.AuditStore, metrics *observability.Metrics, logger *zap.Logger) *AuditService {
	return &AuditService{store: store, metrics: metrics, logger: logger}
}

// Record appends one audit entry.
func (s *AuditService) Record(ctx context.Context, action domain.AuditAction, model, recordID, accountID, description, actor string, severity domain.AuditSeverity) {
	entry := &domain.AuditLogEntry{
		ID:          uuid.New().String(),
		Action:      action,
		Model:       model,
		RecordID:    recordID,
		AccountID:   accountID,
		Description: description,
		Actor:       actor,
		Severity:    severity,
		Timestamp:   time.Now().UTC(),
	}

	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.Error("audit append failed",
			zap.String("model", model),
			zap.String("record_id", recordID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrAuditEntry()
}

// ListByRecord returns the trail for one record, oldest first.
func (s *AuditService) ListByRecord(ctx context.Context, model, recordID string) ([]domain.AuditLogEntry, error) {
	ctx, span := auditTracer.Start(ctx, "AuditService.ListByRecord")
	defer span.End()

	return s.store.ListAuditByRecord(ctx, model, recordID)
}

// ListByAccount returns entries touching an account within a window.
func (s *AuditService) ListByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.AuditLogEntry, error) {
	ctx, span := auditTracer.Start(ctx, "AuditService.ListByAccount")
	defer span.End()

	return s.store.ListAuditByAccount(ctx, accountID, from, to, page, pageSize)
}

// ArchiveOlderThan flags entries older than age as archived. Entries are
// never deleted or mutated; archival is a retention marker only.
func (s *AuditService) ArchiveOlderThan(ctx context.Context, age time.Duration) (int, error) {
	ctx, span := auditTracer.Start(ctx, "AuditService.ArchiveOlderThan")
	defer span.End()

	cutoff := time.Now().UTC().Add(-age)
	n, err := s.store.MarkArchivedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("audit retention pass", zap.Int("archived", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// StartRetentionLoop runs ArchiveOlderThan on a ticker until ctx ends.
func (s *AuditService) StartRetentionLoop(ctx context.Context, interval, age time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ArchiveOlderThan(ctx, age); err != nil {
					s.logger.Error("audit retention pass failed", zap.Error(err))
				}
			}
		}
	}()
}
