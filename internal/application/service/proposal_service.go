package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/pkg/utils"
)

// CreateProposalCommand carries the fields of a new proposal
type CreateProposalCommand struct {
	Title         string
	ApplicantName string
	Amount        decimal.Decimal
	Description   string
}

// Validate checks required fields and limits. Text fields are trimmed and
// stripped of control characters in place.
func (c *CreateProposalCommand) Validate() error {
	c.Title = utils.SanitizeLine(c.Title)
	c.ApplicantName = utils.SanitizeLine(c.ApplicantName)
	c.Description = utils.SanitizeText(c.Description)

	var problems []string
	check := func(field, value string, max int) {
		switch {
		case value == "":
			problems = append(problems, field+" is required")
		case utf8.RuneCountInString(value) > max:
			problems = append(problems, fmt.Sprintf("%s must be at most %d characters", field, max))
		}
	}

	check("title", c.Title, entity.MaxTitleLength)
	check("applicantName", c.ApplicantName, entity.MaxApplicantLength)
	check("description", c.Description, entity.MaxDescriptionLength)
	if !c.Amount.IsPositive() {
		problems = append(problems, "amount must be greater than zero")
	}

	if len(problems) > 0 {
		return errs.Validation("%s", strings.Join(problems, "; "))
	}
	return nil
}

// ProposalService handles proposal creation and reads. Transitions go through the workflow engine.
type ProposalService interface {
	Create(ctx context.Context, cmd CreateProposalCommand) (*entity.Proposal, error)
	Get(ctx context.Context, id int64) (*entity.Proposal, error)
	List(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error)
}

type proposalServiceImpl struct {
	repo   port.ProposalRepository
	logger Logger
}

// NewProposalService creates a new ProposalService
func NewProposalService(repo port.ProposalRepository, logger Logger) ProposalService {
	return &proposalServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

// Create stores a new DRAFT proposal with no steps
func (s *proposalServiceImpl) Create(ctx context.Context, cmd CreateProposalCommand) (*entity.Proposal, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p := &entity.Proposal{
		Title:         cmd.Title,
		ApplicantName: cmd.ApplicantName,
		Amount:        cmd.Amount,
		Description:   cmd.Description,
		Status:        entity.ProposalStatusDraft,
		Steps:         []entity.Step{},
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create proposal", "error", err, "applicant", cmd.ApplicantName)
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.logger.Info("Proposal created",
		"proposal_id", p.ID,
		"applicant", p.ApplicantName,
		"amount", p.Amount.String(),
	)
	return p, nil
}

// Get returns one proposal with its steps
func (s *proposalServiceImpl) Get(ctx context.Context, id int64) (*entity.Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// List returns a filtered page of proposals
func (s *proposalServiceImpl) List(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return query.Page[*entity.Proposal]{}, errs.Validation("unknown status %q", filter.Status)
	}
	if filter.MinAmount != nil && filter.MaxAmount != nil && filter.MinAmount.GreaterThan(*filter.MaxAmount) {
		return query.Page[*entity.Proposal]{}, errs.Validation("minAmount must not exceed maxAmount")
	}

	page, err := s.repo.FindPage(ctx, filter, req)
	if err != nil {
		return query.Page[*entity.Proposal]{}, fmt.Errorf("list proposals: %w", err)
	}
	return page, nil
}
