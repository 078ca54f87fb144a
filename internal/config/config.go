// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(...) builds a Config populated with defaults.
// - Load(ctx) layers file and environment values on top of the defaults.
// - A loaded Config is treated as immutable for the life of the process.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Defaults. The port matches the one used by the container image.
const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 5000
	DefaultModel               = "identity"
	defaultReadTimeoutMS       = 10_000
	defaultReadHeaderTimeoutMS = 5_000
	defaultWriteTimeoutMS      = 10_000
	defaultIdleTimeoutMS       = 60_000
	defaultShutdownTimeoutMS   = 30_000
	defaultMaxBodyBytes        = 1 << 20
	defaultMaxFeatures         = 100_000
	defaultMetricsRefreshMS    = 10_000
	maxPort                    = 65535
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Host is the bind address; empty or 0.0.0.0 listens on all interfaces.
	Host string `koanf:"host"`

	// Port is the TCP listen port. 0 picks an ephemeral port.
	Port int `koanf:"port"`

	// HTTP server deadlines in milliseconds.
	ReadTimeoutMS       int `koanf:"read_timeout_ms"`
	ReadHeaderTimeoutMS int `koanf:"read_header_timeout_ms"`
	WriteTimeoutMS      int `koanf:"write_timeout_ms"`
	IdleTimeoutMS       int `koanf:"idle_timeout_ms"`

	// ShutdownTimeoutMS bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// MaxBodyBytes caps the size of a POST /score body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// MaxFeatures caps len(X). 0 disables the check.
	MaxFeatures int `koanf:"max_features"`

	// Model names the scoring strategy.
	Model string `koanf:"model"`

	// ScoringLatencyMS simulates model latency per request.
	ScoringLatencyMS int `koanf:"scoring_latency_ms"`

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshMS is the period of the process gauge refresh.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`

	// DocsEnabled exposes GET /openapi.yaml and GET /api-docs.
	DocsEnabled bool `koanf:"docs_enabled"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Host:                DefaultHost,
		Port:                DefaultPort,
		ReadTimeoutMS:       defaultReadTimeoutMS,
		ReadHeaderTimeoutMS: defaultReadHeaderTimeoutMS,
		WriteTimeoutMS:      defaultWriteTimeoutMS,
		IdleTimeoutMS:       defaultIdleTimeoutMS,
		ShutdownTimeoutMS:   defaultShutdownTimeoutMS,
		MaxBodyBytes:        defaultMaxBodyBytes,
		MaxFeatures:         defaultMaxFeatures,
		Model:               DefaultModel,
		MetricsEnabled:      true,
		MetricsRefreshMS:    defaultMetricsRefreshMS,
		DocsEnabled:         true,
	}
}

// Addr is the host:port pair handed to the listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadTimeout returns the server read deadline.
func (c *Config) ReadTimeout() time.Duration { return ms(c.ReadTimeoutMS) }

// ReadHeaderTimeout returns the server header read deadline.
func (c *Config) ReadHeaderTimeout() time.Duration { return ms(c.ReadHeaderTimeoutMS) }

// WriteTimeout returns the server write deadline.
func (c *Config) WriteTimeout() time.Duration { return ms(c.WriteTimeoutMS) }

// IdleTimeout returns the keep-alive idle deadline.
func (c *Config) IdleTimeout() time.Duration { return ms(c.IdleTimeoutMS) }

// ShutdownTimeout returns the drain bound.
func (c *Config) ShutdownTimeout() time.Duration { return ms(c.ShutdownTimeoutMS) }

// ScoringLatency returns the simulated model latency.
func (c *Config) ScoringLatency() time.Duration { return ms(c.ScoringLatencyMS) }

// MetricsRefresh returns the process gauge refresh period.
func (c *Config) MetricsRefresh() time.Duration { return ms(c.MetricsRefreshMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > maxPort:
		return fmt.Errorf("%w: port must be between 0 and %d, got %d", ErrInvalidConfig, maxPort, c.Port)
	case c.ReadTimeoutMS <= 0, c.ReadHeaderTimeoutMS <= 0, c.WriteTimeoutMS <= 0, c.IdleTimeoutMS <= 0:
		return fmt.Errorf("%w: server timeouts must be positive", ErrInvalidConfig)
	case c.ShutdownTimeoutMS <= 0:
		return fmt.Errorf("%w: shutdown_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	case c.MaxFeatures < 0:
		return fmt.Errorf("%w: max_features must not be negative", ErrInvalidConfig)
	case c.ScoringLatencyMS < 0:
		return fmt.Errorf("%w: scoring_latency_ms must not be negative", ErrInvalidConfig)
	case c.MetricsRefreshMS <= 0:
		return fmt.Errorf("%w: metrics_refresh_ms must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.Model) == "":
		return fmt.Errorf("%w: model must not be empty", ErrInvalidConfig)
	}
	return nil
}
