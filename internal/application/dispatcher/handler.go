package dispatcher

import (
	"context"
	"fmt"

	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// Handler delivers one committed event to an outbound channel
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerError records which subscriber failed to take an event
type HandlerError struct {
	Handler    string
	EventID    string
	EventType  event.Type
	ProposalID int64
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s for proposal %d: %v", e.Handler, e.EventType, e.ProposalID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
