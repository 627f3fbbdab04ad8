package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// defaultExportLimit bounds a single export
const defaultExportLimit = 100000

// AuditRecorder appends audit records. Record runs inside the caller's
// transaction; a failure must abort that transaction.
type AuditRecorder interface {
	Record(ctx context.Context, proposalID int64, eventType event.Type, actor, message string) (*entity.AuditRecord, error)
}

// AuditService records and reads the audit trail
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error)
	Export(ctx context.Context, filter port.AuditFilter, w io.Writer) error
	ExportFormat() (contentType, extension string)
}

type auditServiceImpl struct {
	repo        port.AuditRepository
	exporter    port.AuditExporter
	logger      Logger
	now         func() time.Time
	exportLimit int
}

// NewAuditService creates a new AuditService. exporter may be nil, in which case Export fails.
func NewAuditService(repo port.AuditRepository, exporter port.AuditExporter, logger Logger) AuditService {
	return &auditServiceImpl{
		repo:        repo,
		exporter:    exporter,
		logger:      logger,
		now:         time.Now,
		exportLimit: defaultExportLimit,
	}
}

// Record appends one audit record
func (s *auditServiceImpl) Record(ctx context.Context, proposalID int64, eventType event.Type, actor, message string) (*entity.AuditRecord, error) {
	if !eventType.IsValid() {
		return nil, errs.Validation("unknown audit event type %q", eventType)
	}

	rec := &entity.AuditRecord{
		ProposalID: proposalID,
		EventType:  eventType,
		Actor:      strings.TrimSpace(actor),
		Message:    message,
		CreatedAt:  s.now(),
	}

	if err := s.repo.Append(ctx, rec); err != nil {
		s.logger.Error("Failed to record audit event",
			"error", err,
			"proposal_id", proposalID,
			"event_type", eventType,
		)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	return rec, nil
}

// List returns a page of audit records, newest first unless sorted otherwise
func (s *auditServiceImpl) List(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error) {
	if filter.EventType != "" && !filter.EventType.IsValid() {
		return query.Page[*entity.AuditRecord]{}, errs.Validation("unknown event type %q", filter.EventType)
	}

	page, err := s.repo.FindPage(ctx, filter, req)
	if err != nil {
		return query.Page[*entity.AuditRecord]{}, fmt.Errorf("list audit records: %w", err)
	}
	return page, nil
}

// Export writes the filtered trail in insertion order
func (s *auditServiceImpl) Export(ctx context.Context, filter port.AuditFilter, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("audit export is not configured")
	}

	// One extra row is enough to tell an oversized trail apart.
	records, err := s.repo.FindAll(ctx, filter, s.exportLimit+1)
	if err != nil {
		return fmt.Errorf("export audit records: %w", err)
	}
	if len(records) > s.exportLimit {
		return errs.Validation("export exceeds the limit of %d records; narrow the filter", s.exportLimit)
	}

	if err := s.exporter.Export(records, w); err != nil {
		s.logger.Error("Failed to export audit records", "error", err, "count", len(records))
		return fmt.Errorf("export audit records: %w", err)
	}

	s.logger.Info("Audit records exported", "count", len(records))
	return nil
}

// ExportFormat describes the document Export produces
func (s *auditServiceImpl) ExportFormat() (string, string) {
	if s.exporter == nil {
		return "application/octet-stream", ""
	}
	return s.exporter.ContentType(), s.exporter.FileExtension()
}
