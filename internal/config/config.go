// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Migration MigrationConfig
	Upload    UploadConfig
	Rate      RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, disabled
	// for long-running synchronous upload requests)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is loaded from the environment (default: 60s) but is not
	// applied; the HTTP router uses its own fixed 60s request timeout.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// MigrationConfig holds the tunables for the ingest/validate/apply/reconcile pipeline.
type MigrationConfig struct {
	// BatchSize is the number of rows accumulated before the reader hands a batch
	// to the executor (default: 5000, per spec §6).
	BatchSize int `env:"MIGRATION_BATCH_SIZE" default:"5000"`

	// MaxConcurrentBatches bounds the executor's worker pool (default: 4; the
	// number of logical CPUs is not consulted).
	MaxConcurrentBatches int `env:"MIGRATION_MAX_CONCURRENT_BATCHES" default:"4"`

	// MaxConcurrentSheets bounds how many independent (non-dependent) target
	// tables Apply may populate in parallel (default: 3).
	MaxConcurrentSheets int `env:"MIGRATION_MAX_CONCURRENT_SHEETS" default:"3"`

	// MaxRows is the Early Validator's row-count ceiling (default: 1,000,000).
	MaxRows int `env:"MIGRATION_MAX_ROWS" default:"1000000"`

	// MaxCells is the Early Validator's cell-count ceiling (default: 5,000,000).
	MaxCells int `env:"MIGRATION_MAX_CELLS" default:"5000000"`

	// RetryMaxAttempts is the maximum number of sink attempts per batch (default: 3).
	RetryMaxAttempts int `env:"MIGRATION_RETRY_MAX_ATTEMPTS" default:"3"`

	// RetryInitialDelay is the base backoff delay (default: 5s).
	RetryInitialDelay time.Duration `env:"MIGRATION_RETRY_INITIAL_DELAY" default:"5s"`

	// RetryMultiplier is the exponential backoff multiplier (default: 2).
	RetryMultiplier float64 `env:"MIGRATION_RETRY_MULTIPLIER" default:"2"`

	// RetryMaxDelay caps the computed backoff delay (default: 1m).
	RetryMaxDelay time.Duration `env:"MIGRATION_RETRY_MAX_DELAY" default:"1m"`

	// CircuitWindowSize is the sliding window of recent batches examined by the
	// circuit breaker (default: 10).
	CircuitWindowSize int `env:"MIGRATION_CIRCUIT_WINDOW_SIZE" default:"10"`

	// CircuitFailureRateThreshold opens the breaker once this fraction of the
	// window has failed (default: 0.5).
	CircuitFailureRateThreshold float64 `env:"MIGRATION_CIRCUIT_FAILURE_RATE" default:"0.5"`

	// CircuitOpenDuration is how long the breaker stays open before a half-open
	// trial (default: 30s).
	CircuitOpenDuration time.Duration `env:"MIGRATION_CIRCUIT_OPEN_DURATION" default:"30s"`

	// SinkTimeout bounds a single sink invocation (default: 30s).
	SinkTimeout time.Duration `env:"MIGRATION_SINK_TIMEOUT" default:"30s"`

	// TimeoutPerPhase bounds how long a single phase may run before the
	// stale-phase reaper fails it (default: 30m, per spec §5).
	TimeoutPerPhase time.Duration `env:"MIGRATION_TIMEOUT_PER_PHASE" default:"30m"`

	// ShutdownDrainTimeout is carried into the executor's Config (default: 5m).
	// The executor's shutdown wait for in-flight batches does not consult it
	// and has no time limit.
	ShutdownDrainTimeout time.Duration `env:"MIGRATION_SHUTDOWN_DRAIN_TIMEOUT" default:"5m"`

	// ReaperInterval is how often the stale-phase reaper scans running jobs
	// (default: 1m).
	ReaperInterval time.Duration `env:"MIGRATION_REAPER_INTERVAL" default:"1m"`
}

// UploadConfig holds the settings for staging an incoming spreadsheet to
// disk before the reader (§4.B) opens it by path.
type UploadConfig struct {
	// Dir is where uploaded workbooks are written before ingest (default: system temp dir).
	Dir string `env:"UPLOAD_DIR" default:""`

	// MaxFileSize bounds the request body accepted from the upload endpoints
	// (default: 200MB; the Early Validator's row/cell ceilings are the real
	// admission control, this is just a request-size backstop).
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"209715200"`
}

// RateLimitConfig holds the ingress admission-control settings (spec §4.E).
type RateLimitConfig struct {
	// StartsPerMinute bounds migration starts admitted per instance per minute
	// (default: 10, per spec §4.E).
	StartsPerMinute int `env:"RATE_LIMIT_STARTS_PER_MINUTE" default:"10"`
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
