package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event emitted by a workflow transition
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ProposalID    int64                  `json:"proposalId"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"at"`
	CorrelationID string                 `json:"correlationId"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, proposalID int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		ProposalID:    proposalID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain.
// Events produced by the same transition share one correlation id.
func NewEventWithCorrelation(eventType Type, proposalID int64, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, proposalID, payload)
	evt.CorrelationID = correlationID
	return evt
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload.
// JSON-decoded numbers arrive as float64 and are truncated.
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
