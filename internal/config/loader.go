// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in schedule comparisons.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *ConfigError) Unwrap() error { return e.Err }

// Load loads and validates the latebird configuration from the environment.
// A .env file in the working directory is applied first when present; real
// environment variables always win over .env entries.
func Load() (*Config, error) {
	// Scheduling comparisons assume UTC everywhere.
	time.Local = time.UTC

	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Stage: "envconfig", Message: "processing environment", Err: err}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate runs struct-tag validation plus cross-field checks that tags
// cannot express.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return &ConfigError{Stage: "validate", Message: "invalid configuration", Err: err}
	}

	if cfg.RateLimit.PostMax <= 0 || cfg.RateLimit.ReadMax <= 0 {
		return &ConfigError{Stage: "validate", Message: "rate limit maximums must be positive"}
	}
	if cfg.Dispatcher.Concurrency <= 0 {
		return &ConfigError{Stage: "validate", Message: "dispatcher concurrency must be positive"}
	}
	if cfg.Dispatcher.DueInterval <= 0 || cfg.Dispatcher.RetryInterval <= 0 {
		return &ConfigError{Stage: "validate", Message: "dispatcher intervals must be positive"}
	}

	return nil
}
