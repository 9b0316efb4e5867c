// Package config provides configuration types for krug-mcp.
//
// Configuration is file-based (krug-mcp.yaml) with environment overrides
// (KRUG_MCP_*). Durations are strings so they can use day units ("1d").
package config

import (
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// DevToken is the bearer token accepted in dev mode when none is configured.
const DevToken = "dev-token"

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Auth configures the shared bearer secret.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Session configures session lifetimes and the backing store.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Tasks configures the background task registry.
	Tasks TasksConfig `yaml:"tasks" mapstructure:"tasks"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development features (debug logging, default token).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only).
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// BaseURL overrides the scheme://host used in discovery links.
	// When empty it is derived from each request.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// AllowedOrigins is the DNS rebinding allowlist. Empty allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins" validate:"omitempty,dive,url"`

	// MaxBodyBytes caps POST bodies. Defaults to 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"omitempty,min=1"`

	// Environment is reported by the server_status tool. Defaults to "production".
	Environment string `yaml:"environment" mapstructure:"environment"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert" mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey  string `yaml:"tls_key" mapstructure:"tls_key" validate:"required_with=TLSCert"`
}

// AuthConfig configures bearer authentication. Exactly one of Token or
// TokenHash must be set.
type AuthConfig struct {
	// Token is the plain shared secret.
	Token string `yaml:"token" mapstructure:"token"`

	// TokenHash is "sha256:<hex>" or an argon2id PHC string.
	// Generate with: krug-mcp hash-token
	TokenHash string `yaml:"token_hash" mapstructure:"token_hash" validate:"omitempty,token_hash"`

	// Subject is the identity every authenticated caller receives.
	Subject string `yaml:"subject" mapstructure:"subject"`
}

// SessionConfig configures session lifetimes and storage.
type SessionConfig struct {
	// TTL is the sliding expiry renewed on every request (e.g., "30m", "1d").
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`

	// GraceTTL is how long a deleted session stays readable. Defaults to "1m".
	GraceTTL string `yaml:"grace_ttl" mapstructure:"grace_ttl" validate:"omitempty,duration"`

	// Store selects the backend: "memory", "redis" or "sqlite".
	Store string `yaml:"store" mapstructure:"store" validate:"omitempty,oneof=memory redis sqlite"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite" mapstructure:"sqlite"`
}

// RedisConfig configures the redis session store.
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db" validate:"min=0"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// SQLiteConfig configures the sqlite session store.
type SQLiteConfig struct {
	// Path is the database file. Defaults to ":memory:".
	Path string `yaml:"path" mapstructure:"path"`
}

// TasksConfig configures process_items workers.
type TasksConfig struct {
	// ItemDelay is the simulated work per item. Defaults to "500ms".
	ItemDelay string `yaml:"item_delay" mapstructure:"item_delay" validate:"omitempty,duration"`

	// Retention is how long finished tasks stay visible. Defaults to "1h".
	Retention string `yaml:"retention" mapstructure:"retention" validate:"omitempty,duration"`
}

// TelemetryConfig configures OpenTelemetry stdout export.
type TelemetryConfig struct {
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`

	// MetricsInterval is the periodic export interval. Defaults to "1m".
	MetricsInterval string `yaml:"metrics_interval" mapstructure:"metrics_interval" validate:"omitempty,duration"`
}

// SetDevDefaults applies permissive defaults for development mode.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	if c.Auth.Token == "" && c.Auth.TokenHash == "" {
		c.Auth.Token = DevToken
	}
	if c.Server.Environment == "production" {
		c.Server.Environment = "development"
	}
	c.Server.LogLevel = "debug"
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	// Bind to localhost only unless told otherwise.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "production"
	}

	if c.Auth.Subject == "" {
		c.Auth.Subject = "jon.doe@example.com"
	}

	if c.Session.TTL == "" {
		c.Session.TTL = "30m"
	}
	if c.Session.GraceTTL == "" {
		c.Session.GraceTTL = "1m"
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
	if c.Session.Redis.Addr == "" {
		c.Session.Redis.Addr = "localhost:6379"
	}
	if c.Session.Redis.KeyPrefix == "" {
		c.Session.Redis.KeyPrefix = "krug-mcp"
	}
	if c.Session.SQLite.Path == "" {
		c.Session.SQLite.Path = ":memory:"
	}

	if c.Tasks.ItemDelay == "" {
		c.Tasks.ItemDelay = "500ms"
	}
	if c.Tasks.Retention == "" {
		c.Tasks.Retention = "1h"
	}

	if c.Telemetry.MetricsInterval == "" {
		c.Telemetry.MetricsInterval = "1m"
	}
}

// SessionTTL returns the parsed session TTL.
func (c *Config) SessionTTL() time.Duration { return mustDuration(c.Session.TTL) }

// SessionGraceTTL returns the parsed grace TTL.
func (c *Config) SessionGraceTTL() time.Duration { return mustDuration(c.Session.GraceTTL) }

// TaskItemDelay returns the parsed per-item delay.
func (c *Config) TaskItemDelay() time.Duration { return mustDuration(c.Tasks.ItemDelay) }

// TaskRetention returns the parsed task retention.
func (c *Config) TaskRetention() time.Duration { return mustDuration(c.Tasks.Retention) }

// TelemetryMetricsInterval returns the parsed metric export interval.
func (c *Config) TelemetryMetricsInterval() time.Duration {
	return mustDuration(c.Telemetry.MetricsInterval)
}

// mustDuration parses a validated duration string. Invalid or empty input
// yields zero, which callers treat as "use the default".
func mustDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	if out.Auth.Token != "" {
		out.Auth.Token = redactedValue
	}
	if out.Session.Redis.Password != "" {
		out.Session.Redis.Password = redactedValue
	}
	return out
}

const redactedValue = "********"
