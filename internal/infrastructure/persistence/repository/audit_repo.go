package repository

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/sqlite"
)

var auditSortColumns = query.SortColumns{
	"id":         "id",
	"createdAt":  "created_at",
	"eventType":  "event_type",
	"proposalId": "proposal_id",
}

// AuditRepository implements port.AuditRepository. There is no update or delete.
type AuditRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlite.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Append inserts an audit record
func (r *AuditRepository) Append(ctx context.Context, rec *entity.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, `
		INSERT INTO audit_records (proposal_id, event_type, actor, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.ProposalID,
		string(rec.EventType),
		rec.Actor,
		rec.Message,
		rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit record",
			zap.Int64("proposal_id", rec.ProposalID),
			zap.String("event_type", string(rec.EventType)),
			zap.Error(err))
		return errs.Storage("append audit record", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errs.Storage("append audit record: last insert id", err)
	}
	rec.ID = id

	return nil
}

// FindPage returns one page of audit records, newest first by default
func (r *AuditRepository) FindPage(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error) {
	orderBy, err := auditSortColumns.OrderBy(req.Sort, "id DESC")
	if err != nil {
		return query.Page[*entity.AuditRecord]{}, err
	}

	where, args := auditWhere(filter)

	var total int64
	var records []*entity.AuditRecord
	err = r.db.WithReadTransaction(ctx, func(ctx context.Context) error {
		if err := sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records"+where, args...).Scan(&total); err != nil {
			r.logger.Error("Failed to count audit records", zap.Error(err))
			return errs.Storage("count audit records", err)
		}

		var err error
		records, err = r.query(ctx, where+" ORDER BY "+orderBy+" LIMIT ? OFFSET ?", append(args, req.Size, req.Offset())...)
		return err
	})
	if err != nil {
		return query.Page[*entity.AuditRecord]{}, err
	}

	return query.NewPage(records, total, req), nil
}

// FindAll returns matching records in insertion order. limit <= 0 means no limit.
func (r *AuditRepository) FindAll(ctx context.Context, filter port.AuditFilter, limit int) ([]*entity.AuditRecord, error) {
	where, args := auditWhere(filter)
	tail := where + " ORDER BY id ASC"
	if limit > 0 {
		tail += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, tail, args...)
}

func (r *AuditRepository) query(ctx context.Context, tail string, args ...interface{}) ([]*entity.AuditRecord, error) {
	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx,
		"SELECT id, proposal_id, event_type, actor, message, created_at FROM audit_records"+tail, args...)
	if err != nil {
		r.logger.Error("Failed to list audit records", zap.Error(err))
		return nil, errs.Storage("list audit records", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var rec entity.AuditRecord
		var eventType string
		if err := rows.Scan(&rec.ID, &rec.ProposalID, &eventType, &rec.Actor, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, errs.Storage("scan audit record", err)
		}
		rec.EventType = event.Type(eventType)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("list audit records", err)
	}

	return records, nil
}

func auditWhere(filter port.AuditFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.ProposalID != nil {
		conds = append(conds, "proposal_id = ?")
		args = append(args, *filter.ProposalID)
	}
	if filter.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, string(filter.EventType))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
