package config

import (
	"github.com/garyjia/proposal-approval/internal/application/query"
	"github.com/garyjia/proposal-approval/internal/container"
	"github.com/garyjia/proposal-approval/internal/interfaces/http"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Workflow: container.WorkflowConfig{
			DefaultChain:        append([]string(nil), c.Workflow.DefaultChain...),
			AllowDuplicateSteps: c.Workflow.AllowDuplicates,
		},
		Paging: container.PagingConfig{
			DefaultSize: c.Paging.DefaultSize,
			MaxSize:     c.Paging.MaxSize,
		},
		Outbox: container.OutboxConfig{
			Enabled:         c.Outbox.Enabled,
			PollInterval:    c.Outbox.PollInterval,
			BatchSize:       c.Outbox.BatchSize,
			MaxAttempts:     c.Outbox.MaxAttempts,
			DispatchTimeout: c.Outbox.DispatchTimeout,
		},
		Kafka: container.KafkaConfig{
			Brokers:      append([]string(nil), c.Kafka.Brokers...),
			ClientID:     c.Kafka.ClientID,
			EventsTopic:  c.Kafka.EventsTopic,
			AuditTopic:   c.Kafka.AuditTopic,
			WriteTimeout: c.Kafka.WriteTimeout,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			ChatID:    c.Lark.ChatID,
		},
	}
}

// ToServerConfig converts the application Config to the HTTP server settings.
func (c *Config) ToServerConfig() http.ServerConfig {
	return http.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		Limits: query.Limits{
			DefaultSize: c.Paging.DefaultSize,
			MaxSize:     c.Paging.MaxSize,
		},
	}
}
