package service

import (
	"context"
	"io"
	"sync"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/domain/entity"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockProposalRepo struct {
	createFunc   func(ctx context.Context, p *entity.Proposal) error
	getByIDFunc  func(ctx context.Context, id int64) (*entity.Proposal, error)
	updateFunc   func(ctx context.Context, p *entity.Proposal, expectedStatus entity.ProposalStatus, expectedVersion int64) error
	findPageFunc func(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error)
}

func (m *mockProposalRepo) Create(ctx context.Context, p *entity.Proposal) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, p)
	}
	p.ID = 1
	p.Version = 1
	return nil
}

func (m *mockProposalRepo) GetByID(ctx context.Context, id int64) (*entity.Proposal, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Proposal{ID: id, Status: entity.ProposalStatusDraft}, nil
}

func (m *mockProposalRepo) Update(ctx context.Context, p *entity.Proposal, expectedStatus entity.ProposalStatus, expectedVersion int64) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, p, expectedStatus, expectedVersion)
	}
	return nil
}

func (m *mockProposalRepo) FindPage(ctx context.Context, filter port.ProposalFilter, req query.PageRequest) (query.Page[*entity.Proposal], error) {
	if m.findPageFunc != nil {
		return m.findPageFunc(ctx, filter, req)
	}
	return query.NewPage[*entity.Proposal](nil, 0, req), nil
}

func (m *mockProposalRepo) Ping(ctx context.Context) error {
	return nil
}

type mockAuditRepo struct {
	mu           sync.Mutex
	appended     []*entity.AuditRecord
	appendFunc   func(ctx context.Context, rec *entity.AuditRecord) error
	findPageFunc func(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error)
	findAllFunc  func(ctx context.Context, filter port.AuditFilter, limit int) ([]*entity.AuditRecord, error)
}

func (m *mockAuditRepo) Append(ctx context.Context, rec *entity.AuditRecord) error {
	if m.appendFunc != nil {
		if err := m.appendFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.appended) + 1)
	m.appended = append(m.appended, rec)
	return nil
}

func (m *mockAuditRepo) FindPage(ctx context.Context, filter port.AuditFilter, req query.PageRequest) (query.Page[*entity.AuditRecord], error) {
	if m.findPageFunc != nil {
		return m.findPageFunc(ctx, filter, req)
	}
	return query.NewPage[*entity.AuditRecord](nil, 0, req), nil
}

func (m *mockAuditRepo) FindAll(ctx context.Context, filter port.AuditFilter, limit int) ([]*entity.AuditRecord, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, filter, limit)
	}
	return nil, nil
}

type mockExporter struct {
	exported []*entity.AuditRecord
	err      error
}

func (m *mockExporter) Export(records []*entity.AuditRecord, w io.Writer) error {
	if m.err != nil {
		return m.err
	}
	m.exported = records
	_, err := io.WriteString(w, "exported")
	return err
}

func (m *mockExporter) ContentType() string   { return "text/plain" }
func (m *mockExporter) FileExtension() string { return ".txt" }
