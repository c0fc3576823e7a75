package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/claims-pipeline/internal/gate"
	"github.com/cuongbtq/claims-pipeline/internal/rail"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
	"github.com/cuongbtq/claims-pipeline/shared/logger"
	"github.com/cuongbtq/claims-pipeline/shared/postgresql"
	"github.com/cuongbtq/claims-pipeline/shared/rabbitmq"
	"github.com/cuongbtq/claims-pipeline/shared/redis"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Gate      GateConfig      `yaml:"gate"`
	Rails     RailsConfig     `yaml:"rails"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectRetries  int           `yaml:"connect_retries"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds the intake queue and outcome exchange configuration.
// When disabled, jobs are only accepted over HTTP and outcomes are not published.
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Intake     IntakeConfig     `yaml:"intake"`
	Outcome    OutcomeConfig    `yaml:"outcome"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds exchange configuration
type ExchangeConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// IntakeConfig holds the queue enqueue requests arrive on
type IntakeConfig struct {
	Queue              string `yaml:"queue"`
	RoutingKey         string `yaml:"routing_key"`
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
	PrefetchCount      int    `yaml:"prefetch_count"`
	ConsumerTag        string `yaml:"consumer_tag"`
}

// OutcomeConfig holds the routing key terminal job events are published with
type OutcomeConfig struct {
	RoutingKey string `yaml:"routing_key"`
}

// ConnectionConfig holds connection retry configuration
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds publish retry configuration
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// RedisConfig holds the intake dedupe store configuration
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	KeyPrefix string        `yaml:"key_prefix"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string   `yaml:"level"`
	Format       string   `yaml:"format"`
	Output       string   `yaml:"output"`
	EnableCaller bool     `yaml:"enable_caller"`
	RedactKeys   []string `yaml:"redact_keys"`
}

// SchedulerConfig holds job scheduling configuration
type SchedulerConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	Concurrency     int           `yaml:"concurrency"`
	PollAfterSubmit time.Duration `yaml:"poll_after_submit"`
	RetentionMaxAge time.Duration `yaml:"retention_max_age"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// GateConfig holds the network safety gate posture.
// Leaving allowed_prefixes out uses the built-in sandbox prefixes; an explicit
// empty list allows nothing and fails the startup check in sandbox mode.
type GateConfig struct {
	Mode            string   `yaml:"mode"`
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
}

// RailsConfig holds connector defaults and statically configured credentials
type RailsConfig struct {
	Timeout     time.Duration      `yaml:"timeout"`
	Credentials []rail.Credentials `yaml:"credentials"`
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file. ${VAR} references are expanded
// from the environment before parsing.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "claims-service"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.Intake.ConsumerTag == "" {
		c.RabbitMQ.Intake.ConsumerTag = c.App.Name
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "claims:"
	}
	if c.Scheduler.MaxAttempts == 0 {
		c.Scheduler.MaxAttempts = scheduler.DefaultMaxAttempts
	}
	c.Gate.Mode = string(gate.ParseMode(c.Gate.Mode))
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration needed to run the claims service
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}

		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}

		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}

		if c.RabbitMQ.Intake.Queue == "" {
			return fmt.Errorf("rabbitmq intake queue is required")
		}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis url is required when redis is enabled")
	}

	if c.Scheduler.MaxAttempts < 1 {
		return fmt.Errorf("invalid scheduler max attempts: %d (must be at least 1)", c.Scheduler.MaxAttempts)
	}

	if c.Scheduler.Concurrency < 0 {
		return fmt.Errorf("invalid scheduler concurrency: %d (must not be negative)", c.Scheduler.Concurrency)
	}

	if c.Scheduler.PollAfterSubmit < 0 {
		return fmt.Errorf("scheduler poll_after_submit must not be negative")
	}

	switch gate.ParseMode(c.Gate.Mode) {
	case gate.ModeSandbox, gate.ModePermissive:
	default:
		return fmt.Errorf("invalid gate mode: %q (must be %q or %q)", c.Gate.Mode, gate.ModeSandbox, gate.ModePermissive)
	}

	for i, creds := range c.Rails.Credentials {
		if creds.OrganizationID == "" {
			return fmt.Errorf("rails.credentials[%d]: organization_id is required", i)
		}
		if creds.Rail == "" {
			return fmt.Errorf("rails.credentials[%d]: rail is required", i)
		}
		if creds.Rail != rail.Sandbox && creds.BaseURL == "" {
			return fmt.Errorf("rails.credentials[%d]: base_url is required for rail %s", i, creds.Rail)
		}
	}

	return nil
}

// LoggerConfig converts the logging section
func (c *Config) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		Output:       c.Logging.Output,
		EnableSource: c.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
		RedactKeys:   c.Logging.RedactKeys,
	}
}

// PostgreSQLConfig converts the database section
func (c *Config) PostgreSQLConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,

		ConnectRetries:       c.Database.ConnectRetries,
		ConnectRetryInterval: c.Database.RetryInterval,
	}
}

// RabbitMQClientConfig converts the rabbitmq section
func (c *Config) RabbitMQClientConfig() *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               c.RabbitMQ.Host,
		Port:               c.RabbitMQ.Port,
		User:               c.RabbitMQ.User,
		Password:           c.RabbitMQ.Password,
		VHost:              c.RabbitMQ.VHost,
		ExchangeName:       c.RabbitMQ.Exchange.Name,
		ExchangeType:       c.RabbitMQ.Exchange.Type,
		IntakeQueue:        c.RabbitMQ.Intake.Queue,
		IntakeRoutingKey:   c.RabbitMQ.Intake.RoutingKey,
		OutcomeRoutingKey:  c.RabbitMQ.Outcome.RoutingKey,
		DeadLetterExchange: c.RabbitMQ.Intake.DeadLetterExchange,
		PrefetchCount:      c.RabbitMQ.Intake.PrefetchCount,
		RetryAttempts:      c.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:      c.RabbitMQ.Connection.RetryInterval,
		Heartbeat:          c.RabbitMQ.Connection.Heartbeat,
		PublishRetries:     c.RabbitMQ.Publish.RetryAttempts,
		PublishRetryDelay:  c.RabbitMQ.Publish.RetryInterval,
	}
}

// RedisClientConfig converts the redis section
func (c *Config) RedisClientConfig() redis.Config {
	return redis.Config{
		URL:      c.Redis.URL,
		Password: c.Redis.Password,
	}
}

// GatePolicy converts the gate section, keeping a nil allowlist nil
func (c *Config) GatePolicy() gate.Config {
	return gate.Config{
		Mode:            gate.ParseMode(c.Gate.Mode),
		AllowedPrefixes: c.Gate.AllowedPrefixes,
	}
}

// SchedulerSettings converts the scheduler section
func (c *Config) SchedulerSettings() scheduler.Config {
	return scheduler.Config{
		MaxAttempts: c.Scheduler.MaxAttempts,
		Concurrency: c.Scheduler.Concurrency,
	}
}

// RailCredentials returns the static credentials with the default timeout applied
func (c *Config) RailCredentials() []rail.Credentials {
	out := make([]rail.Credentials, len(c.Rails.Credentials))
	for i, creds := range c.Rails.Credentials {
		if creds.Timeout <= 0 {
			creds.Timeout = c.Rails.Timeout
		}
		out[i] = creds
	}
	return out
}
