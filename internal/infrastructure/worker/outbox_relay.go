package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/dispatcher"
	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// OutboxRelayConfig holds configuration for the outbox relay
type OutboxRelayConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxAttempts     int
	DispatchTimeout time.Duration
}

// DefaultOutboxRelayConfig returns default configuration
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		PollInterval:    time.Second,
		BatchSize:       50,
		MaxAttempts:     10,
		DispatchTimeout: 10 * time.Second,
	}
}

// RelayMetrics observes delivery outcomes
type RelayMetrics interface {
	ObserveOutboxPublish(result string)
}

// RelayStats is a point-in-time view of the relay
type RelayStats struct {
	Running        bool
	PublishedCount int
	FailedCount    int
	LastProcessed  time.Time
	LastError      string
}

// OutboxRelay delivers committed outbox messages to the dispatcher's handlers.
// Delivery is at-least-once: a message is marked published only after every
// handler for its type succeeded.
type OutboxRelay struct {
	config     OutboxRelayConfig
	outbox     port.OutboxRepository
	dispatcher dispatcher.Dispatcher
	metrics    RelayMetrics
	logger     *zap.Logger

	mu             sync.RWMutex
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	publishedCount int
	failedCount    int
	lastProcessed  time.Time
	lastError      error
}

// NewOutboxRelay creates a new outbox relay. metrics may be nil.
func NewOutboxRelay(
	config OutboxRelayConfig,
	outbox port.OutboxRepository,
	d dispatcher.Dispatcher,
	metrics RelayMetrics,
	logger *zap.Logger,
) *OutboxRelay {
	defaults := DefaultOutboxRelayConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.DispatchTimeout <= 0 {
		config.DispatchTimeout = defaults.DispatchTimeout
	}

	return &OutboxRelay{
		config:     config,
		outbox:     outbox,
		dispatcher: d,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start begins the polling loop
func (w *OutboxRelay) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("outbox relay already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("OutboxRelay started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(loopCtx, w.done)

	return nil
}

// Stop terminates the loop and waits for the in-flight batch to finish
func (w *OutboxRelay) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("OutboxRelay stopped",
		zap.Int("published_count", w.publishedCount),
		zap.Int("failed_count", w.failedCount))

	return nil
}

// Name returns the worker name for identification
func (w *OutboxRelay) Name() string {
	return "OutboxRelay"
}

// Stats returns the relay counters
func (w *OutboxRelay) Stats() RelayStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := RelayStats{
		Running:        w.isRunning,
		PublishedCount: w.publishedCount,
		FailedCount:    w.failedCount,
		LastProcessed:  w.lastProcessed,
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	return stats
}

func (w *OutboxRelay) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Outbox poll loop context cancelled")
			return

		case <-ticker.C:
			_, err := w.ProcessOnce(ctx)

			w.mu.Lock()
			w.lastError = err
			w.lastProcessed = time.Now()
			w.mu.Unlock()

			if err != nil {
				w.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessOnce relays one batch and returns the number of messages delivered.
// After a failure, the proposal's later messages wait for the next batch so
// its events stay in order.
func (w *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	messages, err := w.outbox.FetchPending(ctx, w.config.BatchSize, w.config.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch outbox messages: %w", err)
	}

	if len(messages) == 0 {
		return 0, nil
	}

	w.logger.Debug("Relaying outbox messages", zap.Int("count", len(messages)))

	delivered := 0
	blocked := make(map[int64]struct{})
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if _, ok := blocked[msg.ProposalID]; ok {
			continue
		}

		if err := w.deliver(ctx, msg.Payload); err != nil {
			w.logger.Warn("Failed to relay outbox message",
				zap.String("message_id", msg.ID),
				zap.Int64("proposal_id", msg.ProposalID),
				zap.String("event_type", string(msg.EventType)),
				zap.Int("attempt", msg.Attempts+1),
				zap.Error(err))

			blocked[msg.ProposalID] = struct{}{}
			if markErr := w.outbox.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				return delivered, markErr
			}
			w.observe("failure")

			w.mu.Lock()
			w.failedCount++
			w.mu.Unlock()
			continue
		}

		if err := w.outbox.MarkPublished(ctx, msg.ID, time.Now()); err != nil {
			return delivered, err
		}
		w.observe("success")
		delivered++

		w.mu.Lock()
		w.publishedCount++
		w.mu.Unlock()
	}

	return delivered, nil
}

func (w *OutboxRelay) deliver(ctx context.Context, payload string) error {
	var evt event.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return fmt.Errorf("decode outbox payload: %w", err)
	}
	if !evt.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", evt.Type)
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, w.config.DispatchTimeout)
	defer cancel()

	return w.dispatcher.Dispatch(dispatchCtx, &evt)
}

func (w *OutboxRelay) observe(result string) {
	if w.metrics != nil {
		w.metrics.ObserveOutboxPublish(result)
	}
}
