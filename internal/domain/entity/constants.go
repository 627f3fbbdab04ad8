package entity

// ProposalStatus is the overall lifecycle status of a proposal
type ProposalStatus string

// Status constants for Proposal
const (
	ProposalStatusDraft       ProposalStatus = "DRAFT"
	ProposalStatusUnderReview ProposalStatus = "UNDER_REVIEW"
	ProposalStatusApproved    ProposalStatus = "APPROVED"
	ProposalStatusRejected    ProposalStatus = "REJECTED"
)

// IsValid reports whether s is one of the defined statuses
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusUnderReview, ProposalStatusApproved, ProposalStatusRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s ProposalStatus) String() string {
	return string(s)
}

// StepStatus is the decision recorded on a single step
type StepStatus string

// Step status constants
const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
)

// IsDecided reports whether the step has left PENDING
func (s StepStatus) IsDecided() bool {
	return s == StepStatusApproved || s == StepStatusRejected
}

// Field limits for proposals
const (
	MaxTitleLength       = 255
	MaxApplicantLength   = 255
	MaxDescriptionLength = 2000
	MaxStepNameLength    = 100
)
