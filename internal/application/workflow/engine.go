package workflow

import (
	"context"
	"time"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	domainwf "github.com/garyjia/proposal-approval/internal/domain/workflow"
)

// WorkflowEngine drives proposals through their review lifecycle. Every
// transition is serialized per proposal and commits the status change, its
// audit record and its outbox messages atomically.
type WorkflowEngine interface {
	// Submit moves a DRAFT proposal into review. A nil chain selects the
	// configured default chain; an empty non-nil chain is a validation error.
	Submit(ctx context.Context, id int64, chain []string) (*entity.Proposal, error)

	// Approve approves the current step
	Approve(ctx context.Context, id int64, cmd ApproveCommand) (*entity.Proposal, error)

	// Reject rejects the current step and closes the review
	Reject(ctx context.Context, id int64, cmd RejectCommand) (*entity.Proposal, error)

	// PermittedTriggers returns the triggers the proposal accepts right now
	PermittedTriggers(ctx context.Context, id int64) ([]domainwf.Trigger, error)
}

// ApproveCommand is the input of an approval
type ApproveCommand struct {
	Approver string
	Comments string
}

// RejectCommand is the input of a rejection. Comments become the rejection reason.
type RejectCommand struct {
	Approver string
	Comments string
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Metrics observes transition outcomes
type Metrics interface {
	ObserveTransition(trigger, result string, elapsed time.Duration)
}
