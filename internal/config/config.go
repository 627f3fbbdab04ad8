package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
)

// envPrefix namespaces environment overrides, e.g. PROPOSAL_SERVER_PORT
const envPrefix = "PROPOSAL"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Paging   PagingConfig   `mapstructure:"paging"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// WorkflowConfig holds the approval chain policy
type WorkflowConfig struct {
	DefaultChain    []string `mapstructure:"default_chain"`
	AllowDuplicates bool     `mapstructure:"allow_duplicate_steps"`
}

// PagingConfig bounds list responses
type PagingConfig struct {
	DefaultSize int `mapstructure:"default_size"`
	MaxSize     int `mapstructure:"max_size"`
}

// OutboxConfig holds outbox relay configuration
type OutboxConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// KafkaConfig holds Kafka publisher configuration. Publishing is off when Brokers is empty.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	EventsTopic  string        `mapstructure:"events_topic"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LarkConfig holds Lark notification configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads .env (if present), then the YAML file at configPath (if non-empty),
// then environment overrides, and validates the result
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Workflow.DefaultChain = splitList(cfg.Workflow.DefaultChain)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/proposals.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Workflow defaults
	v.SetDefault("workflow.default_chain", []string{"PEER_REVIEW", "MANAGER_APPROVAL", "COMPLIANCE"})
	v.SetDefault("workflow.allow_duplicate_steps", false)

	// Paging defaults
	v.SetDefault("paging.default_size", 20)
	v.SetDefault("paging.max_size", 100)

	// Outbox defaults
	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.max_attempts", 10)
	v.SetDefault("outbox.dispatch_timeout", 10*time.Second)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "proposal-approval")
	v.SetDefault("kafka.events_topic", "proposal-events")
	v.SetDefault("kafka.audit_topic", "audit-logs")
	v.SetDefault("kafka.write_timeout", 5*time.Second)

	// Lark defaults
	v.SetDefault("lark.enabled", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds unprefixed environment variables for credentials and brokers
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":     "LARK_APP_ID",
		"lark.app_secret": "LARK_APP_SECRET",
		"lark.chat_id":    "LARK_CHAT_ID",
		"kafka.brokers":   "KAFKA_BROKERS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}
	return nil
}

// splitList flattens comma-separated entries, which is how lists arrive from the environment
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Workflow.DefaultChain) == 0 {
		return fmt.Errorf("workflow.default_chain must contain at least one step")
	}
	for _, step := range c.Workflow.DefaultChain {
		if len(step) > entity.MaxStepNameLength {
			return fmt.Errorf("workflow.default_chain step %q is too long", step)
		}
	}

	if c.Paging.DefaultSize <= 0 || c.Paging.MaxSize <= 0 {
		return fmt.Errorf("paging sizes must be positive")
	}
	if c.Paging.DefaultSize > c.Paging.MaxSize {
		return fmt.Errorf("paging.default_size must not exceed paging.max_size")
	}

	if c.Outbox.Enabled {
		if c.Outbox.PollInterval <= 0 {
			return fmt.Errorf("outbox.poll_interval must be positive")
		}
		if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
			return fmt.Errorf("outbox.batch_size and outbox.max_attempts must be positive")
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.EventsTopic == "" {
		return fmt.Errorf("kafka.events_topic is required when kafka.brokers is set")
	}

	// Validate Lark credentials only when notifications are on
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
		if c.Lark.ChatID == "" {
			return fmt.Errorf("lark.chat_id is required")
		}
	}

	return nil
}
