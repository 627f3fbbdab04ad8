package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/application/service"
	"github.com/garyjia/proposal-approval/internal/application/workflow"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/errs"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	domainwf "github.com/garyjia/proposal-approval/internal/domain/workflow"
)

var testTime = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func newTestServer(deps Dependencies) *Server {
	if deps.Proposals == nil {
		deps.Proposals = &mockProposalService{}
	}
	if deps.Audit == nil {
		deps.Audit = &mockAuditService{}
	}
	if deps.Engine == nil {
		deps.Engine = &mockEngine{}
	}
	return NewServer(DefaultServerConfig(), deps, &mockLogger{})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func underReview() *entity.Proposal {
	submitted := testTime
	return &entity.Proposal{
		ID:               7,
		Title:            "Lab upgrade",
		ApplicantName:    "Robin",
		Amount:           decimal.RequireFromString("1500.25"),
		Description:      "New benches",
		Status:           entity.ProposalStatusUnderReview,
		CurrentStepIndex: 1,
		Steps: []entity.Step{
			{Order: 0, Name: "TEAM_LEAD", Status: entity.StepStatusApproved, Approver: "kim", DecidedAt: &submitted},
			{Order: 1, Name: "CFO", Status: entity.StepStatusPending},
		},
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
		SubmittedAt: &submitted,
	}
}

func TestCreateProposal(t *testing.T) {
	var got service.CreateProposalCommand
	s := newTestServer(Dependencies{Proposals: &mockProposalService{
		CreateFunc: func(ctx context.Context, cmd service.CreateProposalCommand) (*entity.Proposal, error) {
			got = cmd
			return &entity.Proposal{ID: 1, Title: cmd.Title, Amount: cmd.Amount, Status: entity.ProposalStatusDraft, CreatedAt: testTime, UpdatedAt: testTime}, nil
		},
	}})

	w := do(t, s, http.MethodPost, "/api/proposals", `{"title":"T","applicantName":"A","amount":99.5,"description":"D"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, "T", got.Title)
	assert.True(t, decimal.RequireFromString("99.5").Equal(got.Amount))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "DRAFT", body["status"])
	assert.Equal(t, 99.5, body["amount"], "amount is a JSON number")
	assert.NotContains(t, body, "currentStepIndex")
	assert.Equal(t, []interface{}{}, body["steps"])
}

func TestCreateProposal_Errors(t *testing.T) {
	s := newTestServer(Dependencies{Proposals: &mockProposalService{
		CreateFunc: func(ctx context.Context, cmd service.CreateProposalCommand) (*entity.Proposal, error) {
			return nil, errs.Validation("title is required")
		},
	}})

	w := do(t, s, http.MethodPost, "/api/proposals", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")

	w = do(t, s, http.MethodPost, "/api/proposals", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProposal(t *testing.T) {
	s := newTestServer(Dependencies{Proposals: &mockProposalService{
		GetFunc: func(ctx context.Context, id int64) (*entity.Proposal, error) {
			if id != 7 {
				return nil, errs.NotFound("proposal %d", id)
			}
			return underReview(), nil
		},
	}})

	w := do(t, s, http.MethodGet, "/api/proposals/7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body ProposalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.CurrentStepIndex)
	assert.Equal(t, 1, *body.CurrentStepIndex)
	assert.Equal(t, "1500.25", body.Amount.String())
	require.Len(t, body.Steps, 2)
	assert.Equal(t, "kim", body.Steps[0].ApprovedBy)
	assert.Equal(t, "2026-02-03T04:05:06Z", *body.Steps[0].ApprovedAt)
	assert.Nil(t, body.Steps[1].ApprovedAt)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/proposals/8", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/proposals/abc", "").Code)
}

func TestListProposals(t *testing.T) {
	var gotFilter port.ProposalFilter
	var gotReq query.PageRequest
	s := newTestServer(Dependencies{Proposals: &mockProposalService{
		ListFunc: func(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
			gotFilter, gotReq = filter, req
			return query.NewPage([]*entity.Proposal{underReview()}, 25, req), nil
		},
	}})

	w := do(t, s, http.MethodGet, "/api/proposals?status=under_review&page=0&size=10&sort=amount,desc&sort=id&minAmount=100", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, entity.ProposalStatusUnderReview, gotFilter.Status)
	require.NotNil(t, gotFilter.MinAmount)
	assert.Equal(t, "100", gotFilter.MinAmount.String())
	assert.Nil(t, gotFilter.MaxAmount)
	assert.Equal(t, 10, gotReq.Size)
	require.Len(t, gotReq.Sort, 2)
	assert.Equal(t, "amount", gotReq.Sort[0].Field)

	var body struct {
		Content       []ProposalResponse `json:"content"`
		TotalElements int64              `json:"totalElements"`
		TotalPages    int                `json:"totalPages"`
		Page          int                `json:"page"`
		Size          int                `json:"size"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(25), body.TotalElements)
	assert.Equal(t, 3, body.TotalPages)
	assert.Len(t, body.Content, 1)
}

func TestListProposals_BadQuery(t *testing.T) {
	s := newTestServer(Dependencies{Proposals: &mockProposalService{
		ListFunc: func(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
			t.Fatal("service must not be called")
			return query.Page[*entity.Proposal]{}, nil
		},
	}})

	for _, q := range []string{"page=-1", "size=abc", "minAmount=ten"} {
		w := do(t, s, http.MethodGet, "/api/proposals?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestSubmitProposal_ChainBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantChain []string
		wantNil   bool
		wantCode  int
	}{
		{name: "absent body uses default", body: "", wantNil: true, wantCode: http.StatusOK},
		{name: "null uses default", body: "null", wantNil: true, wantCode: http.StatusOK},
		{name: "custom chain", body: `["TEAM_LEAD","RISK","CFO"]`, wantChain: []string{"TEAM_LEAD", "RISK", "CFO"}, wantCode: http.StatusOK},
		{name: "empty array is passed through", body: `[]`, wantChain: []string{}, wantCode: http.StatusBadRequest},
		{name: "object body rejected", body: `{"steps":["A"]}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			s := newTestServer(Dependencies{Engine: &mockEngine{
				SubmitFunc: func(ctx context.Context, id int64, chain []string) (*entity.Proposal, error) {
					called = true
					if tt.wantNil {
						assert.Nil(t, chain)
					} else {
						assert.Equal(t, tt.wantChain, chain)
					}
					if chain != nil && len(chain) == 0 {
						return nil, errs.Validation("approval chain must contain at least one step")
					}
					return underReview(), nil
				},
			}})

			w := do(t, s, http.MethodPost, "/api/proposals/7/submit", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantNil || tt.wantChain != nil {
				assert.True(t, called)
			}
		})
	}
}

func TestDecisionEndpoints(t *testing.T) {
	var approved workflow.ApproveCommand
	var rejected workflow.RejectCommand
	s := newTestServer(Dependencies{Engine: &mockEngine{
		ApproveFunc: func(ctx context.Context, id int64, cmd workflow.ApproveCommand) (*entity.Proposal, error) {
			approved = cmd
			return underReview(), nil
		},
		RejectFunc: func(ctx context.Context, id int64, cmd workflow.RejectCommand) (*entity.Proposal, error) {
			rejected = cmd
			p := underReview()
			p.Status = entity.ProposalStatusRejected
			return p, nil
		},
	}})

	w := do(t, s, http.MethodPost, "/api/proposals/7/approve", `{"approver":"kim","comments":"ok"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.ApproveCommand{Approver: "kim", Comments: "ok"}, approved)

	w = do(t, s, http.MethodPost, "/api/proposals/7/reject", `{"approver":"lee","comments":"too costly"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "too costly", rejected.Comments)
	assert.NotContains(t, w.Body.String(), "currentStepIndex")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{errs.Validation("approver is required"), http.StatusBadRequest},
		{errs.NotFound("proposal 7"), http.StatusNotFound},
		{errs.IllegalState("proposal 7 is APPROVED"), http.StatusConflict},
		{errs.Storage("update proposal", fmt.Errorf("database is locked")), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			s := newTestServer(Dependencies{Engine: &mockEngine{
				ApproveFunc: func(ctx context.Context, id int64, cmd workflow.ApproveCommand) (*entity.Proposal, error) {
					return nil, tt.err
				},
			}})

			w := do(t, s, http.MethodPost, "/api/proposals/7/approve", `{"approver":"kim"}`)
			assert.Equal(t, tt.code, w.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.code == http.StatusServiceUnavailable, body.Retryable)
			assert.NotContains(t, body.Error, "boom", "internal errors are not leaked")
		})
	}
}

func TestPermittedTriggers(t *testing.T) {
	s := newTestServer(Dependencies{
		Proposals: &mockProposalService{GetFunc: func(ctx context.Context, id int64) (*entity.Proposal, error) {
			return underReview(), nil
		}},
		Engine: &mockEngine{TriggersFunc: func(ctx context.Context, id int64) ([]domainwf.Trigger, error) {
			return []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject}, nil
		}},
	})

	w := do(t, s, http.MethodGet, "/api/proposals/7/triggers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body TriggersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"APPROVE", "REJECT"}, body.Triggers)
	assert.Equal(t, "UNDER_REVIEW", body.Status)
}

func TestListAudit(t *testing.T) {
	var gotFilter port.AuditFilter
	s := newTestServer(Dependencies{Audit: &mockAuditService{
		ListFunc: func(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error) {
			gotFilter = filter
			return query.NewPage([]*entity.AuditRecord{
				{ID: 2, ProposalID: 7, EventType: event.TypeStepApproved, Actor: "kim", CreatedAt: testTime},
			}, 1, req), nil
		},
	}})

	w := do(t, s, http.MethodGet, "/api/audit?proposalId=7&eventType=step_approved", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, gotFilter.ProposalID)
	assert.Equal(t, int64(7), *gotFilter.ProposalID)
	assert.Equal(t, event.TypeStepApproved, gotFilter.EventType)
	assert.Contains(t, w.Body.String(), `"createdAt":"2026-02-03T04:05:06Z"`)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/audit?proposalId=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/audit?eventType=CREATED", "").Code)
}

func TestExportAudit(t *testing.T) {
	s := newTestServer(Dependencies{Audit: &mockAuditService{
		ExportFunc: func(ctx context.Context, filter port.AuditFilter, w io.Writer) error {
			_, err := io.WriteString(w, "id,event\n1,PROPOSAL_SUBMITTED\n")
			return err
		},
	}})

	w := do(t, s, http.MethodGet, "/api/audit/export?proposalId=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="audit-trail-7.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "PROPOSAL_SUBMITTED")
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		results    map[string]error
		wantCode   int
		wantStatus string
	}{
		{"all up", map[string]error{"database": nil, "notifier": nil}, http.StatusOK, "ok"},
		{"notifier down", map[string]error{"database": nil, "notifier": fmt.Errorf("timeout")}, http.StatusOK, "degraded"},
		{"database down", map[string]error{"database": fmt.Errorf("closed")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Dependencies{Health: &mockHealth{results: tt.results}})

			w := do(t, s, http.MethodGet, "/api/health", "")
			assert.Equal(t, tt.wantCode, w.Code)

			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Len(t, body.Components, len(tt.results))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(Dependencies{})

	w := do(t, s, http.MethodOptions, "/api/proposals", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(Dependencies{Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "proposal_transitions_total 1\n")
	})})

	w := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "proposal_transitions_total")
}

func TestReadChain(t *testing.T) {
	chain, err := readChain(strings.NewReader("  [\" A \"]  "))
	require.NoError(t, err)
	assert.Equal(t, []string{" A "}, chain, "trimming is the chain builder's job")

	_, err = readChain(strings.NewReader(strings.Repeat(" ", maxSubmitBodyBytes+1)))
	assert.Error(t, err)
}
