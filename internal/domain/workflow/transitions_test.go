package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

func newDraft() *entity.Proposal {
	return &entity.Proposal{
		ID:            1,
		Title:         "New lab equipment",
		ApplicantName: "Alex",
		Amount:        decimal.NewFromInt(1200),
		Description:   "Oscilloscopes",
		Status:        entity.ProposalStatusDraft,
	}
}

func pendingSteps(names ...string) []entity.Step {
	steps := make([]entity.Step, len(names))
	for i, n := range names {
		steps[i] = entity.Step{Order: i, Name: n, Status: entity.StepStatusPending}
	}
	return steps
}

func submitted(t *testing.T, names ...string) *entity.Proposal {
	t.Helper()
	p := newDraft()
	_, err := Submit(context.Background(), p, pendingSteps(names...), time.Now())
	require.NoError(t, err)
	return p
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := newDraft()

	outcome, err := Submit(ctx, p, pendingSteps("TEAM_LEAD", "RISK", "CFO"), now)
	require.NoError(t, err)

	assert.Equal(t, entity.ProposalStatusUnderReview, p.Status)
	assert.Equal(t, 0, p.CurrentStepIndex)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "RISK", p.Steps[1].Name)
	require.NotNil(t, p.SubmittedAt)
	assert.Equal(t, now, *p.SubmittedAt)

	assert.Equal(t, StateDraft, outcome.From)
	assert.Equal(t, StateUnderReview, outcome.To)
	assert.Equal(t, event.TypeProposalSubmitted, outcome.AuditEvent)
	assert.Equal(t, []event.Type{event.TypeProposalSubmitted}, outcome.Events)
}

func TestSubmit_RejectsNonDraft(t *testing.T) {
	p := submitted(t, "A", "B")
	before := p.Clone()

	_, err := Submit(context.Background(), p, pendingSteps("X"), time.Now())
	assert.ErrorIs(t, err, errs.ErrIllegalState)
	assert.Equal(t, before, p, "failed resubmission must not mutate the proposal")
}

func TestSubmit_RejectsEmptySteps(t *testing.T) {
	p := newDraft()

	_, err := Submit(context.Background(), p, nil, time.Now())
	assert.ErrorIs(t, err, errs.ErrIllegalState)
	assert.Equal(t, entity.ProposalStatusDraft, p.Status)
	assert.Empty(t, p.Steps)
}

func TestApproveStep_AdvancesCursor(t *testing.T) {
	p := submitted(t, "TEAM_LEAD", "RISK", "CFO")

	outcome, err := ApproveStep(context.Background(), p, "jamie", "looks fine", time.Now())
	require.NoError(t, err)

	assert.Equal(t, entity.ProposalStatusUnderReview, p.Status)
	assert.Equal(t, 1, p.CurrentStepIndex)
	assert.Equal(t, entity.StepStatusApproved, p.Steps[0].Status)
	assert.Equal(t, "jamie", p.Steps[0].Approver)
	assert.Equal(t, "looks fine", p.Steps[0].Comments)
	assert.NotNil(t, p.Steps[0].DecidedAt)
	assert.Equal(t, entity.StepStatusPending, p.Steps[1].Status)
	assert.Nil(t, p.DecidedAt)

	assert.Equal(t, 0, outcome.StepIndex)
	assert.Equal(t, "TEAM_LEAD", outcome.StepName)
	assert.Equal(t, event.TypeStepApproved, outcome.AuditEvent)
	assert.Equal(t, []event.Type{event.TypeStepApproved}, outcome.Events)
}

func TestApproveStep_FinalStepApprovesProposal(t *testing.T) {
	ctx := context.Background()
	p := submitted(t, "TEAM_LEAD", "RISK", "CFO")

	var outcome *Outcome
	var err error
	for i := 0; i < 3; i++ {
		outcome, err = ApproveStep(ctx, p, "approver", "", time.Now())
		require.NoError(t, err, "approval %d", i)
	}

	assert.Equal(t, entity.ProposalStatusApproved, p.Status)
	assert.Equal(t, 2, p.CurrentStepIndex)
	assert.NotNil(t, p.DecidedAt)
	for i, s := range p.Steps {
		assert.Equal(t, entity.StepStatusApproved, s.Status, "step %d", i)
	}

	assert.Equal(t, StateApproved, outcome.To)
	assert.Equal(t, event.TypeProposalApproved, outcome.AuditEvent)
	assert.Equal(t, []event.Type{event.TypeStepApproved, event.TypeProposalApproved}, outcome.Events)

	_, err = ApproveStep(ctx, p, "approver", "", time.Now())
	assert.ErrorIs(t, err, errs.ErrIllegalState, "approve after terminal must fail")
}

func TestReject_LeavesLaterStepsPending(t *testing.T) {
	ctx := context.Background()
	p := submitted(t, "TEAM_LEAD", "RISK", "CFO")
	_, err := ApproveStep(ctx, p, "lead", "", time.Now())
	require.NoError(t, err)

	outcome, err := Reject(ctx, p, "risk-officer", "exposure too high", time.Now())
	require.NoError(t, err)

	assert.Equal(t, entity.ProposalStatusRejected, p.Status)
	assert.Equal(t, entity.StepStatusApproved, p.Steps[0].Status)
	assert.Equal(t, entity.StepStatusRejected, p.Steps[1].Status)
	assert.Equal(t, "exposure too high", p.Steps[1].RejectionReason)
	assert.Equal(t, "risk-officer", p.Steps[1].Approver)
	assert.Equal(t, entity.StepStatusPending, p.Steps[2].Status)
	assert.NotNil(t, p.DecidedAt)

	assert.Equal(t, 1, outcome.StepIndex)
	assert.Equal(t, event.TypeProposalRejected, outcome.AuditEvent)
}

func TestTransitions_IllegalFromDraftAndTerminal(t *testing.T) {
	ctx := context.Background()

	rejected := submitted(t, "A")
	_, err := Reject(ctx, rejected, "x", "no", time.Now())
	require.NoError(t, err)

	approved := submitted(t, "A")
	_, err = ApproveStep(ctx, approved, "x", "", time.Now())
	require.NoError(t, err)

	for name, p := range map[string]*entity.Proposal{
		"draft":    newDraft(),
		"rejected": rejected,
		"approved": approved,
	} {
		t.Run(name, func(t *testing.T) {
			before := p.Clone()

			_, err := ApproveStep(ctx, p, "x", "", time.Now())
			assert.ErrorIs(t, err, errs.ErrIllegalState)

			_, err = Reject(ctx, p, "x", "", time.Now())
			assert.ErrorIs(t, err, errs.ErrIllegalState)

			assert.Equal(t, before, p)
		})
	}
}

func TestApproveStep_CurrentStepAlreadyDecided(t *testing.T) {
	p := submitted(t, "A", "B")
	p.Steps[0].Status = entity.StepStatusApproved

	_, err := ApproveStep(context.Background(), p, "x", "", time.Now())
	assert.True(t, errors.Is(err, ErrStepAlreadyDecided))
	assert.Equal(t, 0, p.CurrentStepIndex)
}

func TestNewProposalMachine_PermittedTriggers(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, []Trigger{TriggerSubmit}, NewProposalMachine(newDraft()).PermittedTriggers(ctx))
	assert.Equal(t, []Trigger{TriggerApprove, TriggerReject}, NewProposalMachine(submitted(t, "A", "B")).PermittedTriggers(ctx))

	approved := submitted(t, "A")
	_, err := ApproveStep(ctx, approved, "x", "", time.Now())
	require.NoError(t, err)
	assert.Empty(t, NewProposalMachine(approved).PermittedTriggers(ctx))
}
