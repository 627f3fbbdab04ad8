package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/dispatcher"
	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/application/service"
	"github.com/garyjia/proposal-approval/internal/application/workflow"
	"github.com/garyjia/proposal-approval/internal/infrastructure/metrics"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/proposal-approval/internal/infrastructure/worker"
	"github.com/garyjia/proposal-approval/pkg/database"
)

// healthTimeout bounds each component health check
const healthTimeout = 2 * time.Second

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Outbound
	publisher port.EventPublisher
	notifier  port.Notifier

	// Observability
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	relay   *worker.OutboxRelay
	workers *worker.WorkerManager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Proposal port.ProposalRepository
	Audit    port.AuditRepository
	Outbox   port.OutboxRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Proposal service.ProposalService
	Audit    service.AuditService
}

// NewContainer validates cfg. Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid container config: %w", err)
	}

	return &Container{
		config:  cfg,
		logger:  logger,
		workers: worker.NewWorkerManager(logger.Named("workers")),
	}, nil
}

// Start initializes every component and starts the background workers.
// On failure the components opened so far are closed.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}
	if c.closed.Load() {
		return fmt.Errorf("container is closed")
	}

	c.logger.Info("Starting container")

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", c.initDatabase},
		{"services", c.initServices},
		{"outbound", c.initOutbound},
		{"workflow", c.initWorkflow},
		{"workers", c.initWorkers},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			c.logger.Error("Container initialization failed",
				zap.String("step", step.name),
				zap.Error(err))
			c.teardown()
			return fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	c.ready.Store(true)
	c.logger.Info("Container started")
	return nil
}

// Close stops workers and releases resources in reverse initialization order.
// It is safe to call more than once.
func (c *Container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Closing container")
	c.ready.Store(false)

	err := c.teardown()
	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.publisher != nil {
		c.publisher.Close()
		c.publisher = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.conn = nil
		c.db = nil
	}

	return errors.Join(errs...)
}

// Ready reports whether Start completed and Close has not been called.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health checks each component. A nil value means healthy.
func (c *Container) Health(ctx context.Context) map[string]error {
	status := make(map[string]error, 4)

	if c.db == nil {
		status["database"] = fmt.Errorf("not initialized")
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		status["database"] = c.db.Ping(checkCtx)
		cancel()
	}

	if c.relay != nil {
		if stats := c.relay.Stats(); !stats.Running {
			status["outbox_relay"] = fmt.Errorf("not running")
		} else {
			status["outbox_relay"] = nil
		}
	}

	if c.notifier != nil {
		status["notifier"] = nil
	}

	if c.publisher != nil {
		checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		status["kafka"] = c.publisher.Ping(checkCtx)
		cancel()
	}

	return status
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger.Named("database"))
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger.Named("repository"))
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initServices(context.Context) error {
	services, err := ProvideServices(c.repositories, c.logger)
	if err != nil {
		return err
	}
	c.services = services
	c.registry, c.metrics = ProvideMetrics()
	return nil
}

func (c *Container) initOutbound(context.Context) error {
	publisher, err := ProvidePublisher(&c.config.Kafka, c.logger)
	if err != nil {
		return err
	}
	c.publisher = publisher

	notifier, err := ProvideNotifier(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.notifier = notifier

	c.dispatcher = ProvideDispatcher(c.logger)
	Subscribe(c.dispatcher, c.publisher, c.notifier)
	return nil
}

func (c *Container) initWorkflow(context.Context) error {
	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Config:    &c.config.Workflow,
		Repos:     c.repositories,
		Audit:     c.services.Audit,
		TxManager: c.db,
		Metrics:   c.metrics,
		Outbox:    c.config.Outbox.Enabled,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	if !c.config.Outbox.Enabled {
		c.logger.Info("Outbox relay disabled")
		return nil
	}

	c.relay = ProvideOutboxRelay(&c.config.Outbox, c.repositories.Outbox, c.dispatcher, c.metrics, c.logger)
	c.workers.Register(c.relay)
	return c.workers.StartAll(ctx)
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// MetricsHandler serves the container's Prometheus registry.
func (c *Container) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the narrow Logger interfaces of the
// service, workflow, dispatcher and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger for packages that take a key-value logger.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
// Errors keep zap's error encoding; pairs with a non-string key are dropped.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
