// Package config defines the global configuration structure for latebird.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor principles: values come from the OS
// environment, optionally seeded from a .env file for local development.
//
// Any missing required value or invalid format causes startup to fail
// immediately (fail fast).
package config

import (
	"time"

	"latebird/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server     ServerConfig
	Database   DatabaseConfig
	Twitter    TwitterConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Dispatcher DispatcherConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// TwitterConfig holds the application-level OAuth1 consumer credentials and
// client tuning for the upstream adapter. Per-user access tokens live in the
// credential store, not here.
type TwitterConfig struct {
	ConsumerKey    string        `envconfig:"TWITTER_CONSUMER_KEY" validate:"required"`
	ConsumerSecret SecretString  `envconfig:"TWITTER_CONSUMER_SECRET" validate:"required"`
	RequestTimeout time.Duration `envconfig:"TWITTER_REQUEST_TIMEOUT" default:"15s"`
	// SmoothingRPS and SmoothingBurst bound the process-wide outbound call
	// rate independently of per-user governance.
	SmoothingRPS   float64 `envconfig:"TWITTER_SMOOTHING_RPS" default:"2"`
	SmoothingBurst int     `envconfig:"TWITTER_SMOOTHING_BURST" default:"5"`
}

// AuthConfig holds session management and credential encryption settings.
type AuthConfig struct {
	// CredentialKey is the hex-encoded 32-byte key used to encrypt stored
	// access secrets at rest.
	CredentialKey   SecretString  `envconfig:"CREDENTIAL_KEY" validate:"required,len=64,hexadecimal"`
	SessionDuration time.Duration `envconfig:"SESSION_DURATION" default:"168h"`
}

// RateLimitConfig holds the governor tuning for each operation class.
// The local limits are deliberately tighter than the provider's quotas so
// bursts are smoothed before they ever reach the provider.
type RateLimitConfig struct {
	PostWindow   time.Duration `envconfig:"RL_POST_WINDOW" default:"15m"`
	PostMax      int           `envconfig:"RL_POST_MAX" default:"10"`
	PostCooldown time.Duration `envconfig:"RL_POST_COOLDOWN" default:"10s"`

	ReadWindow   time.Duration `envconfig:"RL_READ_WINDOW" default:"15m"`
	ReadMax      int           `envconfig:"RL_READ_MAX" default:"30"`
	ReadCooldown time.Duration `envconfig:"RL_READ_COOLDOWN" default:"5s"`
}

// CacheConfig holds the response cache policy.
type CacheConfig struct {
	// Freshness is the window within which a cached read is served without
	// consulting the governor or the upstream at all.
	Freshness time.Duration `envconfig:"CACHE_FRESHNESS" default:"2m"`
}

// DispatcherConfig holds the sweep cadence and per-post delivery limits.
type DispatcherConfig struct {
	// Enabled controls whether the API binary runs the sweeps in-process.
	// The standalone dispatcher binary ignores this flag.
	Enabled        bool          `envconfig:"DISPATCHER_ENABLED" default:"true"`
	DueInterval    time.Duration `envconfig:"DISPATCH_DUE_INTERVAL" default:"60s"`
	RetryInterval  time.Duration `envconfig:"DISPATCH_RETRY_INTERVAL" default:"5m"`
	PerPostTimeout time.Duration `envconfig:"DISPATCH_POST_TIMEOUT" default:"30s"`
	Concurrency    int           `envconfig:"DISPATCH_CONCURRENCY" default:"4"`
	BatchLimit     int           `envconfig:"DISPATCH_BATCH_LIMIT" default:"100"`
}
