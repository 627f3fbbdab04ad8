package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/dispatcher"
	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/service"
	"github.com/garyjia/proposal-approval/internal/application/workflow"
	"github.com/garyjia/proposal-approval/internal/domain/event"
	domainwf "github.com/garyjia/proposal-approval/internal/domain/workflow"
	"github.com/garyjia/proposal-approval/internal/infrastructure/export/excel"
	infraLark "github.com/garyjia/proposal-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/proposal-approval/internal/infrastructure/messaging/kafka"
	"github.com/garyjia/proposal-approval/internal/infrastructure/metrics"
	"github.com/garyjia/proposal-approval/internal/infrastructure/notification"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/proposal-approval/internal/infrastructure/worker"
	"github.com/garyjia/proposal-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).Run(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger, sqlite.WithReader(conn.Reader)),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Proposal: repository.NewProposalRepository(db, logger),
		Audit:    repository.NewAuditRepository(db, logger),
		Outbox:   repository.NewOutboxRepository(db, logger),
	}, nil
}

// ProvideServices creates the proposal and audit services.
func ProvideServices(repos *RepositoryBundle, logger *zap.Logger) (*ServiceBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}

	svcLogger := &zapLoggerAdapter{logger: logger.Named("service")}
	return &ServiceBundle{
		Proposal: service.NewProposalService(repos.Proposal, svcLogger),
		Audit:    service.NewAuditService(repos.Audit, excel.NewAuditExporter(logger), svcLogger),
	}, nil
}

// ProvideMetrics registers the workflow collectors on a dedicated registry
// alongside the Go runtime and process collectors.
func ProvideMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

// WorkflowDeps holds the dependencies of the workflow engine.
type WorkflowDeps struct {
	Config    *WorkflowConfig
	Repos     *RepositoryBundle
	Audit     service.AuditRecorder
	TxManager port.TransactionManager
	Metrics   workflow.Metrics
	Outbox    bool
	Logger    *zap.Logger
}

// ProvideWorkflowEngine builds the chain builder and the engine on top of it.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Config == nil || deps.Repos == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}

	chains, err := domainwf.NewChainBuilder(deps.Config.DefaultChain, deps.Config.AllowDuplicateSteps)
	if err != nil {
		return nil, fmt.Errorf("invalid default chain: %w", err)
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(deps.Metrics))
	}
	if deps.Outbox {
		opts = append(opts, workflow.WithOutbox(deps.Repos.Outbox))
	}

	return workflow.NewEngine(deps.Repos.Proposal, deps.Audit, deps.TxManager, chains, opts...), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	)
}

// ProvidePublisher creates the Kafka publisher, or nil when no brokers are configured.
func ProvidePublisher(cfg *KafkaConfig, logger *zap.Logger) (port.EventPublisher, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers:      cfg.Brokers,
		ClientID:     cfg.ClientID,
		EventsTopic:  cfg.EventsTopic,
		AuditTopic:   cfg.AuditTopic,
		WriteTimeout: cfg.WriteTimeout,
	}, logger.Named("kafka"))
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// ProvideNotifier returns the Lark notifier when enabled and the log notifier otherwise.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil || !cfg.Enabled {
		return notification.NewLogNotifier(logger.Named("notifier")), nil
	}

	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
	}, logger.Named("lark"))

	notifier, err := infraLark.NewNotifier(client, cfg.ChatID, logger.Named("notifier"))
	if err != nil {
		return nil, err
	}
	return notifier, nil
}

// Subscribe attaches the outbound adapters to every event type.
// A nil publisher is skipped.
func Subscribe(d dispatcher.Dispatcher, publisher port.EventPublisher, notifier port.Notifier) {
	if publisher != nil {
		d.Subscribe("kafka", func(ctx context.Context, evt *event.Event) error {
			return publisher.Publish(ctx, evt)
		})
	}
	if notifier != nil {
		d.Subscribe(notifier.Name(), func(ctx context.Context, evt *event.Event) error {
			return notifier.Notify(ctx, evt)
		})
	}
}

// ProvideOutboxRelay creates the relay worker.
func ProvideOutboxRelay(cfg *OutboxConfig, outbox port.OutboxRepository, d dispatcher.Dispatcher, m worker.RelayMetrics, logger *zap.Logger) *worker.OutboxRelay {
	return worker.NewOutboxRelay(worker.OutboxRelayConfig{
		PollInterval:    cfg.PollInterval,
		BatchSize:       cfg.BatchSize,
		MaxAttempts:     cfg.MaxAttempts,
		DispatchTimeout: cfg.DispatchTimeout,
	}, outbox, d, m, logger.Named("outbox_relay"))
}
