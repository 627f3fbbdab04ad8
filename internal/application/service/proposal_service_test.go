package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
)

func validCommand() CreateProposalCommand {
	return CreateProposalCommand{
		Title:         "  New lab equipment ",
		ApplicantName: "alex",
		Amount:        decimal.RequireFromString("1200.50"),
		Description:   "Two oscilloscopes",
	}
}

func TestProposalService_Create(t *testing.T) {
	var stored *entity.Proposal
	repo := &mockProposalRepo{
		createFunc: func(ctx context.Context, p *entity.Proposal) error {
			p.ID = 42
			stored = p
			return nil
		},
	}
	logger := &mockLogger{}
	svc := NewProposalService(repo, logger)

	p, err := svc.Create(context.Background(), validCommand())
	require.NoError(t, err)

	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, "New lab equipment", p.Title, "title is trimmed")
	assert.Equal(t, "Two oscilloscopes", p.Description)
	assert.Equal(t, entity.ProposalStatusDraft, p.Status)
	assert.Empty(t, p.Steps)
	assert.Same(t, stored, p)
	assert.Contains(t, logger.infos, "Proposal created")
}

func TestProposalService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *CreateProposalCommand)
		want   string
	}{
		{"blank title", func(c *CreateProposalCommand) { c.Title = "   " }, "title is required"},
		{"control characters only", func(c *CreateProposalCommand) { c.ApplicantName = "\x00\x1b" }, "applicantName is required"},
		{"missing applicant", func(c *CreateProposalCommand) { c.ApplicantName = "" }, "applicantName is required"},
		{"missing description", func(c *CreateProposalCommand) { c.Description = "" }, "description is required"},
		{"zero amount", func(c *CreateProposalCommand) { c.Amount = decimal.Zero }, "amount must be greater than zero"},
		{"negative amount", func(c *CreateProposalCommand) { c.Amount = decimal.NewFromInt(-5) }, "amount must be greater than zero"},
		{"long title", func(c *CreateProposalCommand) { c.Title = strings.Repeat("t", entity.MaxTitleLength+1) }, "title must be at most 255 characters"},
		{"long description", func(c *CreateProposalCommand) { c.Description = strings.Repeat("d", entity.MaxDescriptionLength+1) }, "description must be at most 2000 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &mockProposalRepo{createFunc: func(ctx context.Context, p *entity.Proposal) error {
				called = true
				return nil
			}}
			svc := NewProposalService(repo, &mockLogger{})

			cmd := validCommand()
			tt.mutate(&cmd)
			_, err := svc.Create(context.Background(), cmd)

			require.ErrorIs(t, err, errs.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, called, "nothing is stored on validation failure")
		})
	}
}

func TestProposalService_Create_StorageFailure(t *testing.T) {
	repo := &mockProposalRepo{createFunc: func(ctx context.Context, p *entity.Proposal) error {
		return errs.Storage("create proposal", assert.AnError)
	}}
	logger := &mockLogger{}
	svc := NewProposalService(repo, logger)

	_, err := svc.Create(context.Background(), validCommand())
	assert.ErrorIs(t, err, errs.ErrStorage)
	assert.True(t, errs.IsRetryable(err))
	assert.Len(t, logger.errors, 1)
}

func TestProposalService_Get(t *testing.T) {
	repo := &mockProposalRepo{getByIDFunc: func(ctx context.Context, id int64) (*entity.Proposal, error) {
		if id == 7 {
			return &entity.Proposal{ID: 7}, nil
		}
		return nil, errs.NotFound("proposal %d not found", id)
	}}
	svc := NewProposalService(repo, &mockLogger{})

	p, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)

	_, err = svc.Get(context.Background(), 8)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProposalService_List(t *testing.T) {
	var gotFilter port.ProposalFilter
	repo := &mockProposalRepo{findPageFunc: func(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
		gotFilter = filter
		return query.NewPage([]*entity.Proposal{{ID: 1}}, 1, req), nil
	}}
	svc := NewProposalService(repo, &mockLogger{})

	filter := port.ProposalFilter{Status: entity.ProposalStatusUnderReview, ApplicantName: "alex"}
	page, err := svc.List(context.Background(), filter, query.PageRequest{Size: 20})
	require.NoError(t, err)
	assert.Equal(t, filter, gotFilter)
	assert.Len(t, page.Content, 1)
}

func TestProposalService_List_Validation(t *testing.T) {
	svc := NewProposalService(&mockProposalRepo{}, &mockLogger{})
	ctx := context.Background()

	_, err := svc.List(ctx, port.ProposalFilter{Status: "PENDING"}, query.PageRequest{Size: 20})
	assert.ErrorIs(t, err, errs.ErrValidation)

	lo, hi := decimal.NewFromInt(500), decimal.NewFromInt(100)
	_, err = svc.List(ctx, port.ProposalFilter{MinAmount: &lo, MaxAmount: &hi}, query.PageRequest{Size: 20})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
