package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/application/port"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string
	ClientID     string
	EventsTopic  string
	AuditTopic   string
	WriteTimeout time.Duration
}

// producer is the subset of *kgo.Client used by the publisher
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Publisher writes proposal events to Kafka
type Publisher struct {
	client producer
	config Config
	logger *zap.Logger
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewPublisher connects a franz-go client to the configured brokers
func NewPublisher(config Config, logger *zap.Logger) (*Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if config.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is required")
	}
	if config.ClientID == "" {
		config.ClientID = "proposal-approval"
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(config.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProduceRequestTimeout(config.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	logger.Info("Kafka publisher created",
		zap.Strings("brokers", config.Brokers),
		zap.String("events_topic", config.EventsTopic),
		zap.String("audit_topic", config.AuditTopic))

	return newPublisher(client, config, logger), nil
}

func newPublisher(client producer, config Config, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, config: config, logger: logger}
}

// Publish writes the event and, when an audit topic is configured, its audit line.
// Both records are produced in one synchronous call.
func (p *Publisher) Publish(ctx context.Context, evt *event.Event) error {
	records, err := p.records(evt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.WriteTimeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		p.logger.Error("Failed to publish event to kafka",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("proposal_id", evt.ProposalID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event %s: %w", evt.ID, err)
	}

	p.logger.Debug("Event published to kafka",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type.String()),
		zap.Int("records", len(records)))
	return nil
}

// Ping checks broker connectivity
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close releases the client
func (p *Publisher) Close() {
	p.client.Close()
}

func (p *Publisher) records(evt *event.Event) ([]*kgo.Record, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", evt.ID, err)
	}

	key := []byte(strconv.FormatInt(evt.ProposalID, 10))
	headers := []kgo.RecordHeader{
		{Key: "event-type", Value: []byte(evt.Type.String())},
		{Key: "correlation-id", Value: []byte(evt.CorrelationID)},
	}

	records := []*kgo.Record{{
		Topic:   p.config.EventsTopic,
		Key:     key,
		Value:   value,
		Headers: headers,
	}}

	if p.config.AuditTopic != "" {
		records = append(records, &kgo.Record{
			Topic:   p.config.AuditTopic,
			Key:     key,
			Value:   []byte(AuditLine(evt)),
			Headers: headers,
		})
	}
	return records, nil
}

// AuditLine renders the single-line audit log entry for an event
func AuditLine(evt *event.Event) string {
	line := fmt.Sprintf("%s proposal=%d event=%s",
		evt.Timestamp.UTC().Format(time.RFC3339), evt.ProposalID, evt.Type)
	if step := evt.GetPayloadString("stepName"); step != "" {
		line += " step=" + step
	}
	if actor := evt.GetPayloadString("actor"); actor != "" {
		line += " actor=" + actor
	}
	return line
}
