package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
)

// CreateProposalRequest is the body of POST /api/proposals
type CreateProposalRequest struct {
	Title         string          `json:"title"`
	ApplicantName string          `json:"applicantName"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// DecisionRequest is the body of approve and reject
type DecisionRequest struct {
	Approver string `json:"approver"`
	Comments string `json:"comments,omitempty"`
}

// ProposalResponse represents a proposal in API responses
type ProposalResponse struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	ApplicantName    string         `json:"applicantName"`
	Amount           json.Number    `json:"amount"`
	Description      string         `json:"description"`
	Status           string         `json:"status"`
	CurrentStepIndex *int           `json:"currentStepIndex,omitempty"`
	Steps            []StepResponse `json:"steps"`
	CreatedAt        string         `json:"createdAt"`
	UpdatedAt        string         `json:"updatedAt"`
	SubmittedAt      *string        `json:"submittedAt,omitempty"`
	DecidedAt        *string        `json:"decidedAt,omitempty"`
}

// StepResponse represents one review step in API responses
type StepResponse struct {
	Order           int     `json:"order"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	ApprovedBy      string  `json:"approvedBy,omitempty"`
	ApprovedAt      *string `json:"approvedAt,omitempty"`
	Comments        string  `json:"comments,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
}

// AuditRecordResponse represents an audit record in API responses
type AuditRecordResponse struct {
	ID         int64  `json:"id"`
	ProposalID int64  `json:"proposalId"`
	EventType  string `json:"eventType"`
	Actor      string `json:"actor,omitempty"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// TriggersResponse lists the transitions a proposal accepts
type TriggersResponse struct {
	ID       int64    `json:"id"`
	Status   string   `json:"status"`
	Triggers []string `json:"triggers"`
}

// toProposalResponse converts domain entity to API response.
// currentStepIndex is only emitted while the proposal is under review.
func toProposalResponse(p *entity.Proposal) ProposalResponse {
	resp := ProposalResponse{
		ID:            p.ID,
		Title:         p.Title,
		ApplicantName: p.ApplicantName,
		Amount:        json.Number(p.Amount.String()),
		Description:   p.Description,
		Status:        string(p.Status),
		Steps:         make([]StepResponse, 0, len(p.Steps)),
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
		SubmittedAt:   formatTimePtr(p.SubmittedAt),
		DecidedAt:     formatTimePtr(p.DecidedAt),
	}

	if p.Status == entity.ProposalStatusUnderReview {
		idx := p.CurrentStepIndex
		resp.CurrentStepIndex = &idx
	}

	for _, s := range p.Steps {
		resp.Steps = append(resp.Steps, StepResponse{
			Order:           s.Order,
			Name:            s.Name,
			Status:          string(s.Status),
			ApprovedBy:      s.Approver,
			ApprovedAt:      formatTimePtr(s.DecidedAt),
			Comments:        s.Comments,
			RejectionReason: s.RejectionReason,
		})
	}

	return resp
}

func toAuditRecordResponse(r *entity.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:         r.ID,
		ProposalID: r.ProposalID,
		EventType:  r.EventType.String(),
		Actor:      r.Actor,
		Message:    r.Message,
		CreatedAt:  formatTime(r.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
