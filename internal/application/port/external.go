package port

import (
	"context"
	"io"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// EventPublisher delivers workflow events to the message broker
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Ping(ctx context.Context) error
	Close()
}

// Notifier tells humans about workflow events
type Notifier interface {
	Notify(ctx context.Context, evt *event.Event) error
	Name() string
}

// AuditExporter renders an audit trail into a downloadable document
type AuditExporter interface {
	Export(records []*entity.AuditRecord, w io.Writer) error
	ContentType() string
	FileExtension() string
}
