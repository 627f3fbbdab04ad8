package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// ProposalFilter narrows a proposal listing. Zero values mean "no filter".
type ProposalFilter struct {
	Status        entity.ProposalStatus
	ApplicantName string
	// Title matches as a case-insensitive substring
	Title     string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// AuditFilter narrows an audit trail listing
type AuditFilter struct {
	ProposalID *int64
	EventType  event.Type
}

// ProposalRepository defines persistence operations for Proposal and its steps
type ProposalRepository interface {
	// Create inserts a proposal and assigns its ID, Version and timestamps
	Create(ctx context.Context, p *entity.Proposal) error

	// GetByID loads a proposal with its steps ordered by step order.
	// Returns errs.ErrNotFound when the id does not exist.
	GetByID(ctx context.Context, id int64) (*entity.Proposal, error)

	// Update persists a transition. The write only applies when the stored row
	// still has expectedStatus and expectedVersion; otherwise errs.ErrIllegalState.
	// On success p.Version is bumped.
	Update(ctx context.Context, p *entity.Proposal, expectedStatus entity.ProposalStatus, expectedVersion int64) error

	// FindPage returns one page of proposals matching the filter
	FindPage(ctx context.Context, filter ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error)

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}

// AuditRepository defines persistence operations for AuditRecord. Append-only.
type AuditRepository interface {
	// Append inserts a record, using the transaction carried in ctx when present
	Append(ctx context.Context, rec *entity.AuditRecord) error

	// FindPage returns one page of audit records, newest first unless sorted otherwise
	FindPage(ctx context.Context, filter AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error)

	// FindAll returns records matching the filter in insertion order, at most limit of them when limit > 0
	FindAll(ctx context.Context, filter AuditFilter, limit int) ([]*entity.AuditRecord, error)
}

// OutboxRepository defines persistence operations for the transactional outbox
type OutboxRepository interface {
	// Append inserts a message, using the transaction carried in ctx when present
	Append(ctx context.Context, msg *entity.OutboxMessage) error

	// FetchPending returns up to limit unpublished messages with fewer than
	// maxAttempts failed deliveries, oldest first
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]*entity.OutboxMessage, error)

	// MarkPublished records a successful delivery
	MarkPublished(ctx context.Context, id string, at time.Time) error

	// MarkFailed increments the attempt counter and stores the error
	MarkFailed(ctx context.Context, id string, cause string) error

	// CountPending returns the number of undelivered messages
	CountPending(ctx context.Context) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
