package http

import (
	"context"
	"io"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/application/service"
	"github.com/garyjia/proposal-approval/internal/application/workflow"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	domainwf "github.com/garyjia/proposal-approval/internal/domain/workflow"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockProposalService struct {
	CreateFunc func(ctx context.Context, cmd service.CreateProposalCommand) (*entity.Proposal, error)
	GetFunc    func(ctx context.Context, id int64) (*entity.Proposal, error)
	ListFunc   func(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error)
}

func (m *mockProposalService) Create(ctx context.Context, cmd service.CreateProposalCommand) (*entity.Proposal, error) {
	return m.CreateFunc(ctx, cmd)
}

func (m *mockProposalService) Get(ctx context.Context, id int64) (*entity.Proposal, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockProposalService) List(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
	return m.ListFunc(ctx, filter, req)
}

type mockAuditService struct {
	RecordFunc func(ctx context.Context, proposalID int64, eventType event.Type, actor, message string) (*entity.AuditRecord, error)
	ListFunc   func(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error)
	ExportFunc func(ctx context.Context, filter port.AuditFilter, w io.Writer) error
}

func (m *mockAuditService) Record(ctx context.Context, proposalID int64, eventType event.Type, actor, message string) (*entity.AuditRecord, error) {
	return m.RecordFunc(ctx, proposalID, eventType, actor, message)
}

func (m *mockAuditService) List(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error) {
	return m.ListFunc(ctx, filter, req)
}

func (m *mockAuditService) Export(ctx context.Context, filter port.AuditFilter, w io.Writer) error {
	return m.ExportFunc(ctx, filter, w)
}

func (m *mockAuditService) ExportFormat() (string, string) {
	return "text/csv", ".csv"
}

type mockEngine struct {
	SubmitFunc   func(ctx context.Context, id int64, chain []string) (*entity.Proposal, error)
	ApproveFunc  func(ctx context.Context, id int64, cmd workflow.ApproveCommand) (*entity.Proposal, error)
	RejectFunc   func(ctx context.Context, id int64, cmd workflow.RejectCommand) (*entity.Proposal, error)
	TriggersFunc func(ctx context.Context, id int64) ([]domainwf.Trigger, error)
}

func (m *mockEngine) Submit(ctx context.Context, id int64, chain []string) (*entity.Proposal, error) {
	return m.SubmitFunc(ctx, id, chain)
}

func (m *mockEngine) Approve(ctx context.Context, id int64, cmd workflow.ApproveCommand) (*entity.Proposal, error) {
	return m.ApproveFunc(ctx, id, cmd)
}

func (m *mockEngine) Reject(ctx context.Context, id int64, cmd workflow.RejectCommand) (*entity.Proposal, error) {
	return m.RejectFunc(ctx, id, cmd)
}

func (m *mockEngine) PermittedTriggers(ctx context.Context, id int64) ([]domainwf.Trigger, error) {
	return m.TriggersFunc(ctx, id)
}

type mockHealth struct {
	results map[string]error
}

func (m *mockHealth) Health(ctx context.Context) map[string]error {
	return m.results
}
