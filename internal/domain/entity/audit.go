package entity

import (
	"time"

	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// AuditRecord is an immutable log entry written for every state-changing transition
type AuditRecord struct {
	ID         int64      `json:"id"`
	ProposalID int64      `json:"proposalId"`
	EventType  event.Type `json:"eventType"`
	Actor      string     `json:"actor,omitempty"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
