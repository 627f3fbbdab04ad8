package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// LogNotifier writes notifications to the application log.
// It is used when no chat integration is configured.
type LogNotifier struct {
	logger *zap.Logger
}

var _ port.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the rendered notification
func (n *LogNotifier) Notify(ctx context.Context, evt *event.Event) error {
	n.logger.Info("Proposal notification",
		zap.String("event_type", evt.Type.String()),
		zap.Int64("proposal_id", evt.ProposalID),
		zap.String("correlation_id", evt.CorrelationID),
		zap.String("message", FormatMessage(evt)))
	return nil
}

// Name identifies the notifier
func (n *LogNotifier) Name() string {
	return "log"
}
