package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/service"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	domainwf "github.com/garyjia/proposal-approval/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	proposals port.ProposalRepository
	audit     service.AuditRecorder
	txManager port.TransactionManager
	chains    *domainwf.ChainBuilder

	outbox  port.OutboxRepository
	metrics Metrics
	logger  Logger
	locks   *KeyedMutex
	now     func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithOutbox enables writing relayed events in the transition transaction
func WithOutbox(repo port.OutboxRepository) EngineOption {
	return func(e *engineImpl) {
		e.outbox = repo
	}
}

// WithMetrics sets the transition metrics sink
func WithMetrics(m Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	proposals port.ProposalRepository,
	audit service.AuditRecorder,
	txManager port.TransactionManager,
	chains *domainwf.ChainBuilder,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		proposals: proposals,
		audit:     audit,
		txManager: txManager,
		chains:    chains,
		locks:     NewKeyedMutex(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit moves a DRAFT proposal into review
func (e *engineImpl) Submit(ctx context.Context, id int64, chain []string) (*entity.Proposal, error) {
	steps, err := e.chains.Build(chain)
	if err != nil {
		e.observe(domainwf.TriggerSubmit, err, e.now())
		return nil, err
	}

	return e.transition(ctx, id, domainwf.TriggerSubmit, "", func(p *entity.Proposal, now time.Time) (*domainwf.Outcome, string, string, error) {
		outcome, err := domainwf.Submit(ctx, p, steps, now)
		if err != nil {
			return nil, "", "", err
		}
		names := make([]string, len(p.Steps))
		for i, s := range p.Steps {
			names[i] = s.Name
		}
		return outcome, p.ApplicantName, fmt.Sprintf("submitted for review: %s", strings.Join(names, " -> ")), nil
	})
}

// Approve approves the current step
func (e *engineImpl) Approve(ctx context.Context, id int64, cmd ApproveCommand) (*entity.Proposal, error) {
	approver := strings.TrimSpace(cmd.Approver)
	if approver == "" {
		err := errs.Validation("approver is required")
		e.observe(domainwf.TriggerApprove, err, e.now())
		return nil, err
	}

	return e.transition(ctx, id, domainwf.TriggerApprove, cmd.Comments, func(p *entity.Proposal, now time.Time) (*domainwf.Outcome, string, string, error) {
		outcome, err := domainwf.ApproveStep(ctx, p, approver, cmd.Comments, now)
		if err != nil {
			return nil, "", "", err
		}
		msg := fmt.Sprintf("step %d (%s) approved", outcome.StepIndex, outcome.StepName)
		if outcome.To == domainwf.StateApproved {
			msg += "; proposal approved"
		}
		if c := strings.TrimSpace(cmd.Comments); c != "" {
			msg += ": " + c
		}
		return outcome, approver, msg, nil
	})
}

// Reject rejects the current step and closes the review
func (e *engineImpl) Reject(ctx context.Context, id int64, cmd RejectCommand) (*entity.Proposal, error) {
	approver := strings.TrimSpace(cmd.Approver)
	if approver == "" {
		err := errs.Validation("approver is required")
		e.observe(domainwf.TriggerReject, err, e.now())
		return nil, err
	}

	return e.transition(ctx, id, domainwf.TriggerReject, cmd.Comments, func(p *entity.Proposal, now time.Time) (*domainwf.Outcome, string, string, error) {
		outcome, err := domainwf.Reject(ctx, p, approver, cmd.Comments, now)
		if err != nil {
			return nil, "", "", err
		}
		msg := fmt.Sprintf("step %d (%s) rejected", outcome.StepIndex, outcome.StepName)
		if c := strings.TrimSpace(cmd.Comments); c != "" {
			msg += ": " + c
		}
		return outcome, approver, msg, nil
	})
}

// PermittedTriggers returns the triggers the proposal accepts right now
func (e *engineImpl) PermittedTriggers(ctx context.Context, id int64) ([]domainwf.Trigger, error) {
	p, err := e.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return domainwf.NewProposalMachine(p).PermittedTriggers(ctx), nil
}

// applyFunc mutates the working copy and returns the outcome, the audit actor and the audit message
type applyFunc func(p *entity.Proposal, now time.Time) (*domainwf.Outcome, string, string, error)

func (e *engineImpl) transition(ctx context.Context, id int64, trigger domainwf.Trigger, comments string, apply applyFunc) (*entity.Proposal, error) {
	start := e.now()

	unlock := e.locks.Lock(id)
	defer unlock()

	var result *entity.Proposal
	var outcome *domainwf.Outcome

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.proposals.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		// Work on a copy so a failed transition never leaks partial mutations
		working := current.Clone()
		o, actor, message, err := apply(working, e.now().UTC())
		if err != nil {
			return err
		}

		if err := e.proposals.Update(txCtx, working, current.Status, current.Version); err != nil {
			return err
		}

		if _, err := e.audit.Record(txCtx, id, o.AuditEvent, actor, message); err != nil {
			return err
		}

		if err := e.appendOutbox(txCtx, working, o, actor, comments); err != nil {
			return err
		}

		result = working
		outcome = o
		return nil
	})

	e.observe(trigger, err, start)

	if err != nil {
		if e.logger != nil {
			e.logger.Error("Transition failed",
				"proposal_id", id,
				"trigger", trigger,
				"error", err,
			)
		}
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("Transition committed",
			"proposal_id", id,
			"trigger", trigger,
			"from", outcome.From,
			"to", outcome.To,
			"step_index", outcome.StepIndex,
			"audit_event", outcome.AuditEvent,
		)
	}

	return result, nil
}

func (e *engineImpl) appendOutbox(ctx context.Context, p *entity.Proposal, o *domainwf.Outcome, actor, comments string) error {
	if e.outbox == nil {
		return nil
	}

	correlationID := uuid.NewString()
	for _, typ := range o.Events {
		payload := map[string]interface{}{
			"title":         p.Title,
			"applicantName": p.ApplicantName,
			"amount":        p.Amount.String(),
			"status":        string(p.Status),
			"stepIndex":     o.StepIndex,
			"stepName":      o.StepName,
		}
		if actor != "" {
			payload["actor"] = actor
		}
		if comments != "" {
			payload["comments"] = comments
		}

		evt := event.NewEventWithCorrelation(typ, p.ID, payload, correlationID)
		evt.Timestamp = p.UpdatedAt

		body, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", typ, err)
		}

		if err := e.outbox.Append(ctx, &entity.OutboxMessage{
			ID:            evt.ID,
			ProposalID:    p.ID,
			EventType:     typ,
			Payload:       string(body),
			CorrelationID: correlationID,
			CreatedAt:     p.UpdatedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *engineImpl) observe(trigger domainwf.Trigger, err error, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveTransition(trigger.String(), resultLabel(err), e.now().Sub(start))
}

// resultLabel maps an error to a low-cardinality metric label
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, errs.ErrValidation):
		return "validation"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrIllegalState):
		return "illegal_state"
	case errors.Is(err, errs.ErrStorage):
		return "storage"
	default:
		return "error"
	}
}
