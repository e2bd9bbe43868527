// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	JobService JobServiceConfig `mapstructure:"job_service"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Submitter  SubmitterConfig  `mapstructure:"submitter"`
	Poller     PollerConfig     `mapstructure:"poller"`
	API        APIConfig        `mapstructure:"api"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// JobServiceConfig points at the external asynchronous job execution service.
type JobServiceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// BillingConfig points at the billing collaborator.
type BillingConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// SubmitterConfig bounds the submission retry loop.
type SubmitterConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	BaseDelay      int `mapstructure:"base_delay"`       // milliseconds
	MaxDelay       int `mapstructure:"max_delay"`        // milliseconds
	TotalBudget    int `mapstructure:"total_budget"`     // milliseconds, wall-clock ceiling
	IdempotencyTTL int `mapstructure:"idempotency_ttl"`  // milliseconds
}

// PollerConfig drives the recurring workflow status fetch.
type PollerConfig struct {
	Interval      int `mapstructure:"interval"`       // milliseconds
	PageSize      int `mapstructure:"page_size"`
	MaxPages      int `mapstructure:"max_pages"`      // pagination safety cap per tick
	GraceTicks    int `mapstructure:"grace_ticks"`    // ticks before a vanished workflow is failed
	DegradedAfter int `mapstructure:"degraded_after"` // consecutive failed ticks before stale notice
}

type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	MetricsPath   string `mapstructure:"metrics_path"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
