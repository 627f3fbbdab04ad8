package excel

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
)

const (
	auditSheet      = "Audit Trail"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var auditHeaders = []string{"ID", "Proposal ID", "Event", "Actor", "Message", "Created At (UTC)"}

// AuditExporter writes audit records as an XLSX workbook
type AuditExporter struct {
	logger *zap.Logger
}

var _ port.AuditExporter = (*AuditExporter)(nil)

// NewAuditExporter creates a new XLSX audit exporter
func NewAuditExporter(logger *zap.Logger) *AuditExporter {
	return &AuditExporter{logger: logger}
}

// Export writes one row per record, in the given order, after a header row
func (e *AuditExporter) Export(records []*entity.AuditRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(auditHeaders))
	for i, h := range auditHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(auditSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to resolve row %d: %w", i+2, err)
		}
		row := []interface{}{
			r.ID,
			r.ProposalID,
			r.EventType.String(),
			r.Actor,
			r.Message,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(auditSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write audit record %d: %w", r.ID, err)
		}
	}

	if err := f.SetColWidth(auditSheet, "E", "E", 60); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetPanes(auditSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Audit trail exported", zap.Int("records", len(records)))
	return nil
}

// ContentType returns the MIME type of the export
func (e *AuditExporter) ContentType() string {
	return contentTypeXLSX
}

// FileExtension returns the export file extension
func (e *AuditExporter) FileExtension() string {
	return ".xlsx"
}
