package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/optilab/internal/optimization"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "knn-cma-es", cfg.Experiment.Method)
	assert.Equal(t, 10, cfg.Experiment.Dim)
	assert.Equal(t, 1e-8, cfg.Experiment.Tolerance)
	assert.Equal(t, "none", cfg.Database.Type)
	assert.Equal(t, optimization.Bounds{Lower: -5, Upper: 5}, cfg.Bounds())
	assert.Equal(t, "json", cfg.LoggingConfig().Format)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EXP_DIM", "3")
	t.Setenv("EXP_SIGMA0", "0.5")
	t.Setenv("EXP_BOUNDS_MODE", "wrap")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("METRICS_TEXTFILE", "/tmp/optilab.prom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Experiment.Dim)
	assert.Equal(t, 0.5, cfg.Experiment.Sigma0)
	assert.Equal(t, "wrap", cfg.Experiment.BoundsMode)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "/tmp/optilab.prom", cfg.MetricsTextfile)
}

func TestLoadRejectsMalformedValue(t *testing.T) {
	t.Setenv("EXP_DIM", "ten")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dim", func(c *Config) { c.Experiment.Dim = 0 }},
		{"popsize", func(c *Config) { c.Experiment.PopSize = -1 }},
		{"sigma", func(c *Config) { c.Experiment.Sigma0 = 0 }},
		{"budget", func(c *Config) { c.Experiment.CallBudget = 0 }},
		{"tolerance", func(c *Config) { c.Experiment.Tolerance = -1 }},
		{"trials", func(c *Config) { c.Experiment.Trials = 0 }},
		{"workers", func(c *Config) { c.Experiment.Workers = 0 }},
		{"bounds", func(c *Config) { c.Experiment.BoundsUpper = c.Experiment.BoundsLower }},
		{"bounds mode", func(c *Config) { c.Experiment.BoundsMode = "bounce" }},
		{"db type", func(c *Config) { c.Database.Type = "postgres" }},
		{"db dsn", func(c *Config) { c.Database.Type = "sqlite"; c.Database.DSN = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.True(t, errors.Is(cfg.Validate(), optimization.ErrInvalidArgument))
		})
	}
}
