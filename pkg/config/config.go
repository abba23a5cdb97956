// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the settings for the sync layer and its CLI.
type Config struct {
	APIBaseURL    string `env:"AITUTOR_API_BASE_URL" envDefault:"http://localhost:3000/api"`
	APIToken      string `env:"AITUTOR_API_TOKEN"`
	HTTPTimeoutMS int    `env:"AITUTOR_HTTP_TIMEOUT_MS" envDefault:"10000"`

	// StoragePath is the SQLite file for local state. Empty means in-memory.
	StoragePath string `env:"AITUTOR_STORAGE_PATH"`

	TraceStdout bool `env:"AITUTOR_TRACE_STDOUT" envDefault:"false"`
}

// HTTPTimeout returns the request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// Load reads .env (best effort) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("AITUTOR_API_BASE_URL cannot be empty")
	}
	if c.HTTPTimeoutMS <= 0 {
		return fmt.Errorf("AITUTOR_HTTP_TIMEOUT_MS must be > 0")
	}
	return nil
}
