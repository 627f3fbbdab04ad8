package event

// Type identifies a proposal workflow event. The values double as the
// audit record event types and the Kafka message type field.
type Type string

const (
	TypeProposalSubmitted Type = "PROPOSAL_SUBMITTED"
	TypeStepApproved      Type = "STEP_APPROVED"
	TypeProposalApproved  Type = "PROPOSAL_APPROVED"
	TypeProposalRejected  Type = "PROPOSAL_REJECTED"
)

// AllTypes lists every defined event type in lifecycle order
var AllTypes = []Type{
	TypeProposalSubmitted,
	TypeStepApproved,
	TypeProposalApproved,
	TypeProposalRejected,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeProposalSubmitted,
		TypeStepApproved,
		TypeProposalApproved,
		TypeProposalRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event closes a proposal's review
func (t Type) IsTerminal() bool {
	return t == TypeProposalApproved || t == TypeProposalRejected
}
