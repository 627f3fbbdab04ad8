package entity

import (
	"time"

	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// OutboxMessage is a domain event staged in the same transaction as the
// transition that produced it, waiting to be relayed downstream
type OutboxMessage struct {
	ID            string     `json:"id"`
	ProposalID    int64      `json:"proposalId"`
	EventType     event.Type `json:"eventType"`
	Payload       string     `json:"payload"`
	CorrelationID string     `json:"correlationId"`
	CreatedAt     time.Time  `json:"createdAt"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
}
