// Package config provides centralized configuration management for the
// pipeline. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config holds all pipeline configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Source   SourceConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds warehouse connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"POSTGRES_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// SourceConfig holds spreadsheet source settings.
type SourceConfig struct {
	// ExportBaseURL is the spreadsheet CSV export root.
	ExportBaseURL string `env:"SHEETS_EXPORT_BASE_URL" default:"https://docs.google.com/spreadsheets/d"`

	// SpreadsheetID identifies the shared workbook (required)
	SpreadsheetID string `env:"SHEETS_SPREADSHEET_ID" required:"true"`

	// Timeout bounds one worksheet export request (default: 30s)
	Timeout time.Duration `env:"SHEETS_TIMEOUT" default:"30s"`

	// RetryMax is the retry count for transient fetch failures (default: 3)
	RetryMax int `env:"SHEETS_RETRY_MAX" default:"3"`
}

// PipelineConfig holds run settings.
type PipelineConfig struct {
	// Workers caps parallel entity runs. 1 keeps the strict sequential,
	// halt-on-first-failure behavior (default: 1)
	Workers int `env:"PIPELINE_WORKERS" default:"1"`

	// RunTimeout bounds a full pipeline run (default: 15m)
	RunTimeout time.Duration `env:"PIPELINE_RUN_TIMEOUT" default:"15m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Validate checks cross-field constraints the tag loader cannot express.
func (c *Config) Validate() error {
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", c.Pipeline.Workers)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
