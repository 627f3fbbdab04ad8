package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/application/service"
	"github.com/garyjia/proposal-approval/internal/application/workflow"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// criticalComponent is the component whose failure makes the service unavailable
const criticalComponent = "database"

// maxSubmitBodyBytes bounds the custom chain payload
const maxSubmitBodyBytes = 64 << 10

// Handlers contains all HTTP request handlers
type Handlers struct {
	proposals service.ProposalService
	audit     service.AuditService
	engine    workflow.WorkflowEngine
	health    HealthChecker
	limits    query.Limits
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, limits query.Limits, logger Logger) *Handlers {
	return &Handlers{
		proposals: deps.Proposals,
		audit:     deps.Audit,
		engine:    deps.Engine,
		health:    deps.Health,
		limits:    limits,
		logger:    logger,
	}
}

// HealthCheck handles GET /api/health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		results := h.health.Health(c.Request.Context())
		resp.Components = make(map[string]string, len(results))
		for name, err := range results {
			if err == nil {
				resp.Components[name] = "up"
				continue
			}
			resp.Components[name] = "down: " + err.Error()
			resp.Status = "degraded"
			if name == criticalComponent {
				status = http.StatusServiceUnavailable
			}
		}
	}

	c.JSON(status, resp)
}

// CreateProposal handles POST /api/proposals
func (h *Handlers) CreateProposal(c *gin.Context) {
	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	p, err := h.proposals.Create(c.Request.Context(), service.CreateProposalCommand{
		Title:         req.Title,
		ApplicantName: req.ApplicantName,
		Amount:        req.Amount,
		Description:   req.Description,
	})
	if err != nil {
		h.respondError(c, "create proposal", err)
		return
	}

	c.JSON(http.StatusCreated, toProposalResponse(p))
}

// GetProposal handles GET /api/proposals/:id
func (h *Handlers) GetProposal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.proposals.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "get proposal", err)
		return
	}

	c.JSON(http.StatusOK, toProposalResponse(p))
}

// ListProposals handles GET /api/proposals
func (h *Handlers) ListProposals(c *gin.Context) {
	req, err := query.ParsePageRequest(c.Query("page"), c.Query("size"), c.QueryArray("sort"), h.limits)
	if err != nil {
		h.respondError(c, "list proposals", err)
		return
	}

	filter := port.ProposalFilter{
		ApplicantName: strings.TrimSpace(c.Query("applicantName")),
		Title:         strings.TrimSpace(c.Query("title")),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = entity.ProposalStatus(strings.ToUpper(status))
	}
	if filter.MinAmount, err = parseAmount(c.Query("minAmount")); err != nil {
		badRequest(c, "invalid minAmount: "+err.Error())
		return
	}
	if filter.MaxAmount, err = parseAmount(c.Query("maxAmount")); err != nil {
		badRequest(c, "invalid maxAmount: "+err.Error())
		return
	}

	page, err := h.proposals.List(c.Request.Context(), filter, req)
	if err != nil {
		h.respondError(c, "list proposals", err)
		return
	}

	c.JSON(http.StatusOK, query.Map(page, toProposalResponse))
}

// SubmitProposal handles POST /api/proposals/:id/submit.
// The body is an optional JSON array of step names; absent or null selects the default chain.
func (h *Handlers) SubmitProposal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	chain, err := readChain(c.Request.Body)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	p, err := h.engine.Submit(c.Request.Context(), id, chain)
	if err != nil {
		h.respondError(c, "submit proposal", err)
		return
	}

	c.JSON(http.StatusOK, toProposalResponse(p))
}

// ApproveStep handles POST /api/proposals/:id/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	p, err := h.engine.Approve(c.Request.Context(), id, workflow.ApproveCommand{
		Approver: req.Approver,
		Comments: req.Comments,
	})
	if err != nil {
		h.respondError(c, "approve step", err)
		return
	}

	c.JSON(http.StatusOK, toProposalResponse(p))
}

// RejectProposal handles POST /api/proposals/:id/reject
func (h *Handlers) RejectProposal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	p, err := h.engine.Reject(c.Request.Context(), id, workflow.RejectCommand{
		Approver: req.Approver,
		Comments: req.Comments,
	})
	if err != nil {
		h.respondError(c, "reject proposal", err)
		return
	}

	c.JSON(http.StatusOK, toProposalResponse(p))
}

// PermittedTriggers handles GET /api/proposals/:id/triggers
func (h *Handlers) PermittedTriggers(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.proposals.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "permitted triggers", err)
		return
	}

	triggers, err := h.engine.PermittedTriggers(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "permitted triggers", err)
		return
	}

	resp := TriggersResponse{ID: id, Status: string(p.Status), Triggers: make([]string, len(triggers))}
	for i, t := range triggers {
		resp.Triggers[i] = t.String()
	}
	c.JSON(http.StatusOK, resp)
}

// ListAudit handles GET /api/audit
func (h *Handlers) ListAudit(c *gin.Context) {
	req, err := query.ParsePageRequest(c.Query("page"), c.Query("size"), c.QueryArray("sort"), h.limits)
	if err != nil {
		h.respondError(c, "list audit", err)
		return
	}

	filter, ok := parseAuditFilter(c)
	if !ok {
		return
	}

	page, err := h.audit.List(c.Request.Context(), filter, req)
	if err != nil {
		h.respondError(c, "list audit", err)
		return
	}

	c.JSON(http.StatusOK, query.Map(page, toAuditRecordResponse))
}

// ExportAudit handles GET /api/audit/export
func (h *Handlers) ExportAudit(c *gin.Context) {
	filter, ok := parseAuditFilter(c)
	if !ok {
		return
	}

	// Render into a buffer so a failed export still gets a proper error status
	var buf bytes.Buffer
	if err := h.audit.Export(c.Request.Context(), filter, &buf); err != nil {
		h.respondError(c, "export audit", err)
		return
	}

	contentType, ext := h.audit.ExportFormat()
	name := "audit-trail"
	if filter.ProposalID != nil {
		name = fmt.Sprintf("audit-trail-%d", *filter.ProposalID)
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, name, ext))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid proposal ID")
		return 0, false
	}
	return id, true
}

func parseAmount(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseAuditFilter(c *gin.Context) (port.AuditFilter, bool) {
	var filter port.AuditFilter

	if raw := strings.TrimSpace(c.Query("proposalId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid proposalId")
			return filter, false
		}
		filter.ProposalID = &id
	}

	if raw := strings.TrimSpace(c.Query("eventType")); raw != "" {
		t := event.Type(strings.ToUpper(raw))
		if !t.IsValid() {
			badRequest(c, "invalid eventType: "+raw)
			return filter, false
		}
		filter.EventType = t
	}

	return filter, true
}

// readChain decodes the optional submit body. It returns nil for an absent or
// null body and a non-nil slice (possibly empty) for a JSON array.
func readChain(body io.Reader) ([]string, error) {
	if body == nil {
		return nil, nil
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxSubmitBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(raw) > maxSubmitBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxSubmitBodyBytes)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var chain []string
	if err := json.Unmarshal(raw, &chain); err != nil {
		return nil, fmt.Errorf("request body must be a JSON array of step names")
	}
	if chain == nil {
		chain = []string{}
	}
	return chain, nil
}
