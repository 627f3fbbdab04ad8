// Package container wires the proposal approval service together and owns
// the lifecycle of its long-lived components.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Workflow WorkflowConfig
	Paging   PagingConfig
	Outbox   OutboxConfig
	Kafka    KafkaConfig
	Lark     LarkConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
}

// WorkflowConfig holds the approval chain policy.
type WorkflowConfig struct {
	// DefaultChain is used when a submission omits the chain
	DefaultChain []string

	AllowDuplicateSteps bool
}

// PagingConfig bounds list endpoints.
type PagingConfig struct {
	DefaultSize int
	MaxSize     int
}

// OutboxConfig holds outbox relay settings.
type OutboxConfig struct {
	Enabled         bool
	PollInterval    time.Duration
	BatchSize       int
	MaxAttempts     int
	DispatchTimeout time.Duration
}

// KafkaConfig holds event publishing settings. Publishing is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers      []string
	ClientID     string
	EventsTopic  string
	AuditTopic   string
	WriteTimeout time.Duration
}

// LarkConfig holds Lark notification settings.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	ChatID    string
}

// DefaultConfig returns a Config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/proposals.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Workflow: WorkflowConfig{
			DefaultChain: []string{"PEER_REVIEW", "MANAGER_APPROVAL", "COMPLIANCE"},
		},
		Paging: PagingConfig{
			DefaultSize: 20,
			MaxSize:     100,
		},
		Outbox: OutboxConfig{
			Enabled:         true,
			PollInterval:    time.Second,
			BatchSize:       50,
			MaxAttempts:     10,
			DispatchTimeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			ClientID:     "proposal-approval",
			EventsTopic:  "proposal-events",
			AuditTopic:   "audit-logs",
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Validate checks the settings the container cannot run without.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max open connections must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.EventsTopic == "" {
		return fmt.Errorf("kafka events topic is required when brokers are set")
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ChatID == "") {
		return fmt.Errorf("lark app id, app secret and chat id are required when lark is enabled")
	}
	return nil
}
