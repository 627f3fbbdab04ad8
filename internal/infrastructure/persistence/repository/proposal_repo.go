package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/sqlite"
)

// proposalSortColumns whitelists the fields a listing may be sorted by
var proposalSortColumns = query.SortColumns{
	"id":            "p.id",
	"title":         "p.title",
	"applicantName": "p.applicant_name",
	"amount":        "CAST(p.amount AS REAL)",
	"status":        "p.status",
	"createdAt":     "p.created_at",
	"updatedAt":     "p.updated_at",
	"submittedAt":   "p.submitted_at",
}

// ProposalRepository implements port.ProposalRepository
type ProposalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *sqlite.DB, logger *zap.Logger) *ProposalRepository {
	return &ProposalRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a proposal together with any steps it already carries
func (r *ProposalRepository) Create(ctx context.Context, p *entity.Proposal) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		now := r.now().UTC()
		p.CreatedAt = now
		p.UpdatedAt = now
		p.Version = 1

		result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, `
			INSERT INTO proposals (
				title, applicant_name, amount, description, status,
				current_step_index, version, created_at, updated_at,
				submitted_at, decided_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.Title,
			p.ApplicantName,
			p.Amount.String(),
			p.Description,
			string(p.Status),
			p.CurrentStepIndex,
			p.Version,
			p.CreatedAt,
			p.UpdatedAt,
			nullTime(p.SubmittedAt),
			nullTime(p.DecidedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create proposal", zap.Error(err))
			return errs.Storage("create proposal", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return errs.Storage("create proposal: last insert id", err)
		}
		p.ID = id

		return r.insertSteps(ctx, p)
	})
}

// GetByID loads a proposal and its steps from one snapshot
func (r *ProposalRepository) GetByID(ctx context.Context, id int64) (*entity.Proposal, error) {
	var p *entity.Proposal
	err := r.db.WithReadTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = r.getByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProposalRepository) getByID(ctx context.Context, id int64) (*entity.Proposal, error) {
	row := sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx, `
		SELECT p.id, p.title, p.applicant_name, p.amount, p.description, p.status,
			p.current_step_index, p.version, p.created_at, p.updated_at,
			p.submitted_at, p.decided_at
		FROM proposals p
		WHERE p.id = ?
	`, id)

	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("proposal %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get proposal", zap.Int64("id", id), zap.Error(err))
		return nil, errs.Storage("get proposal", err)
	}

	steps, err := r.loadSteps(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Steps = steps[id]

	return p, nil
}

// Update writes a transition guarded by the expected status and version
func (r *ProposalRepository) Update(ctx context.Context, p *entity.Proposal, expectedStatus entity.ProposalStatus, expectedVersion int64) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := sqlite.Executor(ctx, r.db.DB)

		result, err := exec.ExecContext(ctx, `
			UPDATE proposals
			SET status = ?, current_step_index = ?, version = version + 1,
				updated_at = ?, submitted_at = ?, decided_at = ?
			WHERE id = ? AND status = ? AND version = ?
		`,
			string(p.Status),
			p.CurrentStepIndex,
			p.UpdatedAt.UTC(),
			nullTime(p.SubmittedAt),
			nullTime(p.DecidedAt),
			p.ID,
			string(expectedStatus),
			expectedVersion,
		)
		if err != nil {
			r.logger.Error("Failed to update proposal", zap.Int64("id", p.ID), zap.Error(err))
			return errs.Storage("update proposal", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return errs.Storage("update proposal: rows affected", err)
		}
		if affected == 0 {
			r.logger.Warn("Stale proposal update rejected",
				zap.Int64("id", p.ID),
				zap.String("expected_status", string(expectedStatus)),
				zap.Int64("expected_version", expectedVersion))
			return errs.IllegalState("proposal %d changed concurrently; expected %s", p.ID, expectedStatus)
		}

		if _, err := exec.ExecContext(ctx, "DELETE FROM proposal_steps WHERE proposal_id = ?", p.ID); err != nil {
			return errs.Storage("replace proposal steps", err)
		}
		if err := r.insertSteps(ctx, p); err != nil {
			return err
		}

		p.Version = expectedVersion + 1
		return nil
	})
}

// FindPage returns one page of proposals matching the filter. The count,
// the rows and their steps come from one snapshot.
func (r *ProposalRepository) FindPage(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
	orderBy, err := proposalSortColumns.OrderBy(req.Sort, "p.id ASC")
	if err != nil {
		return query.Page[*entity.Proposal]{}, err
	}

	var page query.Page[*entity.Proposal]
	err = r.db.WithReadTransaction(ctx, func(ctx context.Context) error {
		var err error
		page, err = r.findPage(ctx, filter, req, orderBy)
		return err
	})
	if err != nil {
		return query.Page[*entity.Proposal]{}, err
	}
	return page, nil
}

func (r *ProposalRepository) findPage(ctx context.Context, filter port.ProposalFilter, req query.PageRequest, orderBy string) (query.Page[*entity.Proposal], error) {
	where, args := proposalWhere(filter)
	exec := sqlite.Executor(ctx, r.db.DB)

	var total int64
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM proposals p"+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count proposals", zap.Error(err))
		return query.Page[*entity.Proposal]{}, errs.Storage("count proposals", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT p.id, p.title, p.applicant_name, p.amount, p.description, p.status,
			p.current_step_index, p.version, p.created_at, p.updated_at,
			p.submitted_at, p.decided_at
		FROM proposals p`+where+`
		ORDER BY `+orderBy+`
		LIMIT ? OFFSET ?
	`, append(args, req.Size, req.Offset())...)
	if err != nil {
		r.logger.Error("Failed to list proposals", zap.Error(err))
		return query.Page[*entity.Proposal]{}, errs.Storage("list proposals", err)
	}
	defer rows.Close()

	var proposals []*entity.Proposal
	var ids []int64
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return query.Page[*entity.Proposal]{}, errs.Storage("scan proposal", err)
		}
		proposals = append(proposals, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return query.Page[*entity.Proposal]{}, errs.Storage("list proposals", err)
	}

	steps, err := r.loadSteps(ctx, ids)
	if err != nil {
		return query.Page[*entity.Proposal]{}, err
	}
	for _, p := range proposals {
		p.Steps = steps[p.ID]
	}

	return query.NewPage(proposals, total, req), nil
}

// Ping checks the store is reachable
func (r *ProposalRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func proposalWhere(filter port.ProposalFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		conds = append(conds, "p.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ApplicantName != "" {
		conds = append(conds, "p.applicant_name = ?")
		args = append(args, filter.ApplicantName)
	}
	if filter.Title != "" {
		conds = append(conds, "LOWER(p.title) LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Title))+"%")
	}
	if filter.MinAmount != nil {
		conds = append(conds, "CAST(p.amount AS REAL) >= ?")
		args = append(args, filter.MinAmount.InexactFloat64())
	}
	if filter.MaxAmount != nil {
		conds = append(conds, "CAST(p.amount AS REAL) <= ?")
		args = append(args, filter.MaxAmount.InexactFloat64())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *ProposalRepository) insertSteps(ctx context.Context, p *entity.Proposal) error {
	exec := sqlite.Executor(ctx, r.db.DB)
	for _, s := range p.Steps {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO proposal_steps (
				proposal_id, step_order, name, status,
				approver, comments, rejection_reason, decided_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.ID,
			s.Order,
			s.Name,
			string(s.Status),
			s.Approver,
			s.Comments,
			s.RejectionReason,
			nullTime(s.DecidedAt),
		)
		if err != nil {
			r.logger.Error("Failed to insert proposal step",
				zap.Int64("proposal_id", p.ID),
				zap.Int("order", s.Order),
				zap.Error(err))
			return errs.Storage("insert proposal step", err)
		}
	}
	return nil
}

func (r *ProposalRepository) loadSteps(ctx context.Context, ids []int64) (map[int64][]entity.Step, error) {
	result := make(map[int64][]entity.Step, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, `
		SELECT proposal_id, step_order, name, status, approver, comments, rejection_reason, decided_at
		FROM proposal_steps
		WHERE proposal_id IN (`+placeholders+`)
		ORDER BY proposal_id, step_order
	`, args...)
	if err != nil {
		r.logger.Error("Failed to load proposal steps", zap.Error(err))
		return nil, errs.Storage("load proposal steps", err)
	}
	defer rows.Close()

	for rows.Next() {
		var proposalID int64
		var s entity.Step
		var status string
		var decidedAt sql.NullTime
		if err := rows.Scan(&proposalID, &s.Order, &s.Name, &status, &s.Approver, &s.Comments, &s.RejectionReason, &decidedAt); err != nil {
			return nil, errs.Storage("scan proposal step", err)
		}
		s.Status = entity.StepStatus(status)
		s.DecidedAt = timePtr(decidedAt)
		result[proposalID] = append(result[proposalID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("load proposal steps", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProposal(row rowScanner) (*entity.Proposal, error) {
	var p entity.Proposal
	var status string
	var submittedAt, decidedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.ApplicantName,
		&p.Amount,
		&p.Description,
		&status,
		&p.CurrentStepIndex,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
		&submittedAt,
		&decidedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = entity.ProposalStatus(status)
	p.SubmittedAt = timePtr(submittedAt)
	p.DecidedAt = timePtr(decidedAt)
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Verify interface compliance
var _ port.ProposalRepository = (*ProposalRepository)(nil)
