// Package config loads runtime configuration from environment variables.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the service.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	ShutdownGrace   time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// PGDSN selects the Postgres store when set; empty runs in-memory.
	PGDSN string `envconfig:"PG_DSN"`

	// ReconcileInterval is how often cached balances are checked against
	// ledger replay. Zero disables the background check.
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"10m"`

	DefaultCurrency string `envconfig:"DEFAULT_CURRENCY" default:"PKR"`

	// SeedChart creates the standard chart of accounts on an empty store.
	SeedChart bool `envconfig:"SEED_CHART" default:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
