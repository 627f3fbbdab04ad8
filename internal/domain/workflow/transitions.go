package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// Outcome describes a successful transition. AuditEvent is the single audit
// record type for the transition; Events are the domain events to relay.
type Outcome struct {
	Trigger    Trigger
	From       State
	To         State
	StepIndex  int
	StepName   string
	AuditEvent event.Type
	Events     []event.Type
}

// NewProposalMachine builds the lifecycle machine for p in its current status.
// The APPROVE guards read the cursor of p, so the machine must be used before p is mutated.
func NewProposalMachine(p *entity.Proposal) StateMachine {
	isLast := func(context.Context) bool { return p.IsLastStep() }
	notLast := func(context.Context) bool { return len(p.Steps) > 0 && !p.IsLastStep() }

	builder := NewBuilder()
	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StateUnderReview)
	builder.Configure(StateUnderReview).
		PermitIf(TriggerApprove, StateApproved, isLast).
		PermitIf(TriggerApprove, StateUnderReview, notLast).
		Permit(TriggerReject, StateRejected)

	return builder.Build(State(p.Status))
}

// Submit materializes the chain on a DRAFT proposal and starts the review
func Submit(ctx context.Context, p *entity.Proposal, steps []entity.Step, now time.Time) (*Outcome, error) {
	from := State(p.Status)
	machine := NewProposalMachine(p)
	if err := machine.Fire(ctx, TriggerSubmit); err != nil {
		return nil, fmt.Errorf("submit proposal %d: %w", p.ID, err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("submit proposal %d: %w", p.ID, ErrGuardFailed)
	}

	p.Steps = append([]entity.Step(nil), steps...)
	p.CurrentStepIndex = 0
	p.Status = machine.State().Status()
	p.SubmittedAt = &now
	p.UpdatedAt = now

	return &Outcome{
		Trigger:    TriggerSubmit,
		From:       from,
		To:         machine.State(),
		StepIndex:  0,
		StepName:   p.Steps[0].Name,
		AuditEvent: event.TypeProposalSubmitted,
		Events:     []event.Type{event.TypeProposalSubmitted},
	}, nil
}

// ApproveStep approves the current step, advancing the cursor or closing the review
func ApproveStep(ctx context.Context, p *entity.Proposal, approver, comments string, now time.Time) (*Outcome, error) {
	from := State(p.Status)
	machine := NewProposalMachine(p)
	if err := machine.Fire(ctx, TriggerApprove); err != nil {
		return nil, fmt.Errorf("approve proposal %d: %w", p.ID, err)
	}

	step := p.CurrentStep()
	if step == nil || step.Status.IsDecided() {
		return nil, fmt.Errorf("approve proposal %d step %d: %w", p.ID, p.CurrentStepIndex, ErrStepAlreadyDecided)
	}

	index := p.CurrentStepIndex
	step.Status = entity.StepStatusApproved
	step.Approver = approver
	step.Comments = comments
	step.DecidedAt = &now

	outcome := &Outcome{
		Trigger:   TriggerApprove,
		From:      from,
		To:        machine.State(),
		StepIndex: index,
		StepName:  step.Name,
	}

	if machine.State() == StateApproved {
		p.DecidedAt = &now
		outcome.AuditEvent = event.TypeProposalApproved
		outcome.Events = []event.Type{event.TypeStepApproved, event.TypeProposalApproved}
	} else {
		p.CurrentStepIndex = index + 1
		outcome.AuditEvent = event.TypeStepApproved
		outcome.Events = []event.Type{event.TypeStepApproved}
	}
	p.Status = machine.State().Status()
	p.UpdatedAt = now

	return outcome, nil
}

// Reject rejects the current step and closes the review. Later steps stay PENDING.
func Reject(ctx context.Context, p *entity.Proposal, approver, reason string, now time.Time) (*Outcome, error) {
	from := State(p.Status)
	machine := NewProposalMachine(p)
	if err := machine.Fire(ctx, TriggerReject); err != nil {
		return nil, fmt.Errorf("reject proposal %d: %w", p.ID, err)
	}

	step := p.CurrentStep()
	if step == nil || step.Status.IsDecided() {
		return nil, fmt.Errorf("reject proposal %d step %d: %w", p.ID, p.CurrentStepIndex, ErrStepAlreadyDecided)
	}

	index := p.CurrentStepIndex
	step.Status = entity.StepStatusRejected
	step.Approver = approver
	step.RejectionReason = reason
	step.DecidedAt = &now

	p.Status = machine.State().Status()
	p.DecidedAt = &now
	p.UpdatedAt = now

	return &Outcome{
		Trigger:    TriggerReject,
		From:       from,
		To:         machine.State(),
		StepIndex:  index,
		StepName:   step.Name,
		AuditEvent: event.TypeProposalRejected,
		Events:     []event.Type{event.TypeProposalRejected},
	}, nil
}
