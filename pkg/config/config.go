// Package config loads the ambient configuration shared by every component
// of the aggregator: logging, metrics, tracing, the response cache, retry
// discipline, and the HTTP client / task manager pool parameters. Carrier
// credentials and endpoints are a separate concern, see internal/settings.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration tree.
type Config struct {
	App         AppConfig         `koanf:"app"`
	Log         LogConfig         `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Tracing     TracingConfig     `koanf:"tracing"`
	Cache       CacheConfig       `koanf:"cache"`
	Retry       RetryConfig       `koanf:"retry"`
	HTTPClient  HTTPClientConfig  `koanf:"http_client"`
	TaskManager TaskManagerConfig `koanf:"task_manager"`
}

// AppConfig holds process-wide identity settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig configures the slog + lumberjack logging pipeline.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig configures the OpenTelemetry OTLP/gRPC exporter.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// CacheConfig configures the response cache backend (component B).
type CacheConfig struct {
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Username   string        `koanf:"username"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // in-memory backend only
}

// Address returns the backend's network address.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RetryConfig configures the task manager's per-task retry discipline
// (component D): base timeout, retry budget, and the per-attempt timeout
// growth and inter-attempt sleep.
type RetryConfig struct {
	MaxRetries      int           `koanf:"max_retries"`
	BaseTimeout     time.Duration `koanf:"base_timeout"`
	TimeoutGrowth   time.Duration `koanf:"timeout_growth"`
	RetrySleep      time.Duration `koanf:"retry_sleep"`
}

// HTTPClientConfig configures the pooled HTTP client facade (component C),
// mirroring the connection-pool parameters an operator tunes for an
// outbound fan-out client: maxClientConnection, maxKeepAliveConnection,
// keepAliveExpiry, connectTimeOut, elswhereTimeOut.
type HTTPClientConfig struct {
	MaxClientConnection    int           `koanf:"max_client_connection"`
	MaxKeepAliveConnection int           `koanf:"max_keep_alive_connection"`
	KeepAliveExpiry        time.Duration `koanf:"keep_alive_expiry"`
	ConnectTimeout         time.Duration `koanf:"connect_timeout"`
	PoolAcquireTimeout     time.Duration `koanf:"elsewhere_timeout"`
}

// TaskManagerConfig configures the async task group's default timeout and
// the cache expiry applied to a freshly assembled schedule response.
type TaskManagerConfig struct {
	AsyncDefaultTimeout time.Duration `koanf:"async_default_timeout"`
	ScheduleExpiry      time.Duration `koanf:"schedule_expiry"`
}

// Validate checks the configuration for internally-inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry.max_retries must be non-negative")
	}

	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the app is running in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the app is running in a production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
