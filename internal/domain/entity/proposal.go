package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Proposal is the aggregate under review: one overall status plus an ordered chain of steps
type Proposal struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	ApplicantName    string          `json:"applicantName"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Status           ProposalStatus  `json:"status"`
	CurrentStepIndex int             `json:"currentStepIndex"`
	Steps            []Step          `json:"steps"`
	Version          int64           `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	SubmittedAt      *time.Time      `json:"submittedAt,omitempty"`
	DecidedAt        *time.Time      `json:"decidedAt,omitempty"`
}

// Step is one role's decision within a proposal's chain
type Step struct {
	Order           int        `json:"order"`
	Name            string     `json:"name"`
	Status          StepStatus `json:"status"`
	Approver        string     `json:"approver,omitempty"`
	Comments        string     `json:"comments,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
}

// CurrentStep returns the step the cursor points at, or nil when the proposal
// is not under review or the cursor is out of range
func (p *Proposal) CurrentStep() *Step {
	if p.Status != ProposalStatusUnderReview {
		return nil
	}
	if p.CurrentStepIndex < 0 || p.CurrentStepIndex >= len(p.Steps) {
		return nil
	}
	return &p.Steps[p.CurrentStepIndex]
}

// IsLastStep reports whether the cursor points at the final step of the chain
func (p *Proposal) IsLastStep() bool {
	return len(p.Steps) > 0 && p.CurrentStepIndex == len(p.Steps)-1
}

// Clone returns a deep copy so a failed transition can never leak partial mutations
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Steps != nil {
		cp.Steps = make([]Step, len(p.Steps))
		for i, s := range p.Steps {
			cp.Steps[i] = s
			if s.DecidedAt != nil {
				t := *s.DecidedAt
				cp.Steps[i].DecidedAt = &t
			}
		}
	}
	if p.SubmittedAt != nil {
		t := *p.SubmittedAt
		cp.SubmittedAt = &t
	}
	if p.DecidedAt != nil {
		t := *p.DecidedAt
		cp.DecidedAt = &t
	}
	return &cp
}
