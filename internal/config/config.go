package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/namelens/relay/pkg/dispatch"
)

// Config represents the complete application configuration.
// Precedence: flags > RELAY_* environment variables > config file > defaults.
type Config struct {
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
}

// DispatchConfig is the per-connector rate limit and retry surface.
type DispatchConfig struct {
	MaxRequestsPerWindow int           `mapstructure:"max_requests_per_window"`
	Window               time.Duration `mapstructure:"window"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MinRequestInterval   time.Duration `mapstructure:"min_request_interval"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay        time.Duration `mapstructure:"max_retry_delay"`
}

// Runtime converts the section into the dispatch package configuration.
func (c DispatchConfig) Runtime() dispatch.Config {
	return dispatch.Config{
		MaxRequestsPerWindow: c.MaxRequestsPerWindow,
		Window:               c.Window,
		MaxRetries:           c.MaxRetries,
		RequestTimeout:       c.RequestTimeout,
		MinRequestInterval:   c.MinRequestInterval,
		RetryDelay:           c.RetryDelay,
		MaxRetryDelay:        c.MaxRetryDelay,
	}
}

// Validate implements validation.Validatable.
func (c DispatchConfig) Validate() error {
	return c.Runtime().Validate()
}

// MarshalYAML renders durations in their human form.
func (c DispatchConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"max_requests_per_window": c.MaxRequestsPerWindow,
		"window":                  c.Window.String(),
		"max_retries":             c.MaxRetries,
		"request_timeout":         c.RequestTimeout.String(),
		"min_request_interval":    c.MinRequestInterval.String(),
		"retry_delay":             c.RetryDelay.String(),
		"max_retry_delay":         c.MaxRetryDelay.String(),
	}, nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AdminToken enables the bearer-protected signal endpoint. Never dumped.
	AdminToken string `mapstructure:"admin_token"`
}

// Validate implements validation.Validatable.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.IdleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// MarshalYAML renders durations in their human form.
func (c ServerConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"host":             c.Host,
		"port":             c.Port,
		"read_timeout":     c.ReadTimeout.String(),
		"write_timeout":    c.WriteTimeout.String(),
		"idle_timeout":     c.IdleTimeout.String(),
		"shutdown_timeout": c.ShutdownTimeout.String(),
	}, nil
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Profile is simple (console, CLI) or structured (JSON, server).
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// Validate implements validation.Validatable.
func (c LoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("trace", "debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Profile, validation.In("simple", "structured")),
	)
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether dispatch metrics are collected and exposed
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port serves /metrics during batch runs; 0 disables the listener
	Port int `mapstructure:"port" yaml:"port"`
}

// Validate implements validation.Validatable.
func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// BatchConfig controls the batch worker pool.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// Validate implements validation.Validatable.
func (c BatchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
	)
}

// Validate checks every section.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dispatch),
		validation.Field(&c.Server),
		validation.Field(&c.Logging),
		validation.Field(&c.Metrics),
		validation.Field(&c.Batch),
	)
}
