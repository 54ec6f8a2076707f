// Package config loads optilab's defaults from the environment.
package config

import (
	"strings"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/optilab/internal/logging"
	"github.com/copyleftdev/optilab/internal/optimization"
)

type Config struct {
	Environment string `env:"OPTILAB_ENV" envDefault:"development"`
	Logging     struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Experiment struct {
		Method      string  `env:"EXP_METHOD" envDefault:"knn-cma-es"`
		Function    string  `env:"EXP_FUNCTION" envDefault:"sphere"`
		Dim         int     `env:"EXP_DIM" envDefault:"10"`
		PopSize     int     `env:"EXP_POPSIZE" envDefault:"0"`
		Sigma0      float64 `env:"EXP_SIGMA0" envDefault:"1"`
		CallBudget  int     `env:"EXP_CALL_BUDGET" envDefault:"10000"`
		Tolerance   float64 `env:"EXP_TOLERANCE" envDefault:"1e-8"`
		Target      float64 `env:"EXP_TARGET" envDefault:"0"`
		Trials      int     `env:"EXP_TRIALS" envDefault:"5"`
		Workers     int     `env:"EXP_WORKERS" envDefault:"4"`
		Seed        int64   `env:"EXP_SEED" envDefault:"42"`
		BoundsLower float64 `env:"EXP_BOUNDS_LOWER" envDefault:"-5"`
		BoundsUpper float64 `env:"EXP_BOUNDS_UPPER" envDefault:"5"`
		BoundsMode  string  `env:"EXP_BOUNDS_MODE" envDefault:"reflect"`
	}
	Database struct {
		Type string `env:"DB_TYPE" envDefault:"none"`
		DSN  string `env:"DB_DSN" envDefault:"file:data/optilab.db?_pragma=busy_timeout(5000)"`
	}
	OutputDir       string `env:"OUTPUT_DIR" envDefault:"results"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Default to debug logging in development when no level is set
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations no experiment could run with.
func (c *Config) Validate() error {
	e := c.Experiment
	switch {
	case e.Dim < 1:
		return invalid("EXP_DIM must be positive, got %d", e.Dim)
	case e.PopSize < 0:
		return invalid("EXP_POPSIZE must not be negative, got %d", e.PopSize)
	case !(e.Sigma0 > 0):
		return invalid("EXP_SIGMA0 must be positive, got %g", e.Sigma0)
	case e.CallBudget < 1:
		return invalid("EXP_CALL_BUDGET must be positive, got %d", e.CallBudget)
	case e.Tolerance < 0:
		return invalid("EXP_TOLERANCE must not be negative, got %g", e.Tolerance)
	case e.Trials < 1:
		return invalid("EXP_TRIALS must be positive, got %d", e.Trials)
	case e.Workers < 1:
		return invalid("EXP_WORKERS must be positive, got %d", e.Workers)
	}
	if _, err := optimization.NewBounds(e.BoundsLower, e.BoundsUpper); err != nil {
		return err
	}
	if _, err := optimization.ParseBoundsMode(e.BoundsMode); err != nil {
		return err
	}

	switch strings.ToLower(c.Database.Type) {
	case "none", "memory":
	case "sqlite":
		if c.Database.DSN == "" {
			return invalid("DB_DSN is required when DB_TYPE is sqlite")
		}
	default:
		return invalid("DB_TYPE must be one of none, memory, sqlite, got %q", c.Database.Type)
	}
	return nil
}

// Bounds returns the configured search space.
func (c *Config) Bounds() optimization.Bounds {
	return optimization.Bounds{Lower: c.Experiment.BoundsLower, Upper: c.Experiment.BoundsUpper}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() *logging.Config {
	return &logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

func invalid(format string, args ...any) error {
	return optimization.NewErrorf(optimization.ErrInvalidArgument, format, args...).WithComponent("config")
}
