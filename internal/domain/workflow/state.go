package workflow

import "github.com/garyjia/proposal-approval/internal/domain/entity"

// State represents a proposal's position in the approval lifecycle
type State string

const (
	StateDraft       State = State(entity.ProposalStatusDraft)
	StateUnderReview State = State(entity.ProposalStatusUnderReview)
	StateApproved    State = State(entity.ProposalStatusApproved)
	StateRejected    State = State(entity.ProposalStatusRejected)
)

var validStates = map[State]bool{
	StateDraft:       true,
	StateUnderReview: true,
	StateApproved:    true,
	StateRejected:    true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// Status converts the state back to the persisted proposal status
func (s State) Status() entity.ProposalStatus {
	return entity.ProposalStatus(s)
}
