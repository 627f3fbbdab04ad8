package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	"github.com/garyjia/proposal-approval/internal/infrastructure/notification"
)

const receiveIDTypeChat = "chat_id"

// TextSender sends plain text messages
type TextSender interface {
	SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error)
}

// Notifier posts workflow events to a Lark group chat
type Notifier struct {
	sender TextSender
	chatID string
	logger *zap.Logger
}

var _ port.Notifier = (*Notifier)(nil)

// NewNotifier creates a Lark chat notifier
func NewNotifier(sender TextSender, chatID string, logger *zap.Logger) (*Notifier, error) {
	if chatID == "" {
		return nil, fmt.Errorf("lark chat id is required")
	}
	return &Notifier{sender: sender, chatID: chatID, logger: logger}, nil
}

// Notify sends the rendered event to the configured chat
func (n *Notifier) Notify(ctx context.Context, evt *event.Event) error {
	messageID, err := n.sender.SendText(ctx, receiveIDTypeChat, n.chatID, notification.FormatMessage(evt))
	if err != nil {
		return fmt.Errorf("failed to notify lark for proposal %d: %w", evt.ProposalID, err)
	}

	n.logger.Info("Lark notification sent",
		zap.String("event_type", evt.Type.String()),
		zap.Int64("proposal_id", evt.ProposalID),
		zap.String("message_id", messageID))
	return nil
}

// Name identifies the notifier
func (n *Notifier) Name() string {
	return "lark"
}
