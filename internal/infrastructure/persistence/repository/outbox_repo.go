package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/sqlite"
)

// maxErrorLength caps the stored delivery error
const maxErrorLength = 1000

// OutboxRepository implements port.OutboxRepository
type OutboxRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sqlite.DB, logger *zap.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a message
func (r *OutboxRepository) Append(ctx context.Context, msg *entity.OutboxMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, `
		INSERT INTO outbox_messages (id, proposal_id, event_type, payload, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ProposalID,
		string(msg.EventType),
		msg.Payload,
		msg.CorrelationID,
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append outbox message",
			zap.String("id", msg.ID),
			zap.Int64("proposal_id", msg.ProposalID),
			zap.Error(err))
		return errs.Storage("append outbox message", err)
	}
	return nil
}

// FetchPending returns undelivered messages, oldest first
func (r *OutboxRepository) FetchPending(ctx context.Context, limit, maxAttempts int) ([]*entity.OutboxMessage, error) {
	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, `
		SELECT id, proposal_id, event_type, payload, correlation_id, created_at,
			published_at, attempts, last_error
		FROM outbox_messages
		WHERE published_at IS NULL AND attempts < ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to fetch pending outbox messages", zap.Error(err))
		return nil, errs.Storage("fetch outbox", err)
	}
	defer rows.Close()

	var messages []*entity.OutboxMessage
	for rows.Next() {
		var msg entity.OutboxMessage
		var eventType string
		var publishedAt sql.NullTime
		if err := rows.Scan(
			&msg.ID,
			&msg.ProposalID,
			&eventType,
			&msg.Payload,
			&msg.CorrelationID,
			&msg.CreatedAt,
			&publishedAt,
			&msg.Attempts,
			&msg.LastError,
		); err != nil {
			return nil, errs.Storage("scan outbox message", err)
		}
		msg.EventType = event.Type(eventType)
		msg.PublishedAt = timePtr(publishedAt)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("fetch outbox", err)
	}

	return messages, nil
}

// MarkPublished records a successful delivery
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx,
		"UPDATE outbox_messages SET published_at = ?, last_error = '' WHERE id = ?", at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark outbox message published", zap.String("id", id), zap.Error(err))
		return errs.Storage("mark outbox published", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter and keeps the last error
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, cause string) error {
	if len(cause) > maxErrorLength {
		cause = cause[:maxErrorLength]
	}

	_, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx,
		"UPDATE outbox_messages SET attempts = attempts + 1, last_error = ? WHERE id = ?", cause, id)
	if err != nil {
		r.logger.Error("Failed to mark outbox message failed", zap.String("id", id), zap.Error(err))
		return errs.Storage("mark outbox failed", err)
	}
	return nil
}

// CountPending returns the number of undelivered messages
func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outbox_messages WHERE published_at IS NULL").Scan(&n)
	if err != nil {
		return 0, errs.Storage("count outbox", err)
	}
	return n, nil
}

// Verify interface compliance
var _ port.OutboxRepository = (*OutboxRepository)(nil)
