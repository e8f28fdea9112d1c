// Package config provides centralized configuration management for salesetl.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Pipeline PipelineConfig
	Database DatabaseConfig
	Server   ServerConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
}

// PipelineConfig holds extract/validate/load settings.
type PipelineConfig struct {
	// SourcePath is the delimited sales file to extract (default: data/raw/sales_data.csv)
	SourcePath string `env:"SOURCE_PATH" default:"data/raw/sales_data.csv"`

	// Delimiter is the single field separator character (default: ,)
	Delimiter string `env:"SOURCE_DELIMITER" default:","`

	// Table is the destination table, replaced on every successful run (default: sales)
	Table string `env:"TABLE_NAME" default:"sales"`

	// RulesFile is an optional YAML file overriding the validation rules
	RulesFile string `env:"RULES_FILE"`

	// SampleSize is the number of rows read back after a load (default: 5)
	SampleSize int `env:"VERIFY_SAMPLE_SIZE" default:"5"`

	// Timeout bounds a whole run; 0 disables it (default: 10m)
	Timeout time.Duration `env:"PIPELINE_TIMEOUT" default:"10m"`
}

// DatabaseConfig holds destination connection settings.
type DatabaseConfig struct {
	// Driver is one of sqlite, postgres, mysql (default: sqlite)
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the driver-specific DSN or file path.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" default:"data/warehouse/sales.db"`

	// MaxConns is the maximum number of pooled connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout must cover a synchronous run triggered over HTTP (default: 0, unbounded)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// ScheduleConfig holds cron settings for serve mode.
type ScheduleConfig struct {
	// Cron is a standard five-field expression or descriptor; empty disables scheduling
	Cron string `env:"SCHEDULE_CRON"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// DelimiterRune returns the configured delimiter as a rune, or ',' when unset.
func (c *PipelineConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
