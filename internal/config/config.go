// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/graphupload/internal/ingest"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Proxy    ProxyConfig
	Ingest   IngestConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional ingestion history database.
// When URL is empty, history is kept in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a history database is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// UploadConfig holds dataset upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for a single ingestion (default: 1m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"1m"`
}

// ProxyConfig holds settings for the backend remote-fetch proxy.
type ProxyConfig struct {
	// BaseURL is the nutrition backend address (default: http://localhost:8000)
	BaseURL string `env:"API_BASE_URL" default:"http://localhost:8000"`

	// Timeout bounds one backend round trip (default: 20s)
	Timeout time.Duration `env:"PROXY_TIMEOUT" default:"20s"`

	// SignedTTL is the lifetime requested for signed asset URLs (default: 300)
	SignedTTL int `env:"PROXY_SIGNED_TTL" default:"300"`
}

// IngestConfig holds normalization settings.
type IngestConfig struct {
	// EmptyCells is how empty cells are stored: null or zero (default: null)
	EmptyCells string `env:"INGEST_EMPTY_CELLS" default:"null"`

	// Schema is how JSON records with differing keys are handled: first or union (default: first)
	Schema string `env:"INGEST_SCHEMA" default:"first"`

	// MaxRows truncates large datasets; 0 disables the limit (default: 10000)
	MaxRows int `env:"INGEST_MAX_ROWS" default:"10000"`
}

// Options converts the settings into normalizer options.
// Call only on a validated config; invalid modes fall back to defaults.
func (c IngestConfig) Options() ingest.Options {
	empty, _ := ingest.ParseEmptyCellMode(c.EmptyCells)
	schema, _ := ingest.ParseSchemaMode(c.Schema)
	return ingest.Options{EmptyCells: empty, Schema: schema, MaxRows: c.MaxRows}
}

// HistoryConfig holds ingestion history retention settings.
type HistoryConfig struct {
	// Retention is how long history entries are kept (default: 168h)
	Retention time.Duration `env:"HISTORY_RETENTION" default:"168h"`

	// PruneInterval is how often expired entries are removed (default: 1h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"1h"`

	// MemoryLimit caps the in-memory store when no database is set (default: 500)
	MemoryLimit int `env:"HISTORY_MEMORY_LIMIT" default:"500"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// IngestLimit is requests per minute for ingestion endpoints (default: 20)
	IngestLimit int `env:"RATE_LIMIT_INGEST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards /api routes with X-API-Key or a bearer token (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
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
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
