// Package testsupport provides shared helpers for exercising scour
// components against temp-backed configuration and stores.
package testsupport

import (
	"path/filepath"
	"testing"

	"scour/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp database per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Store.DatabasePath = filepath.Join(base, "scour.db")
	cfg.Logging.Paths = []string{filepath.Join(base, "scour.log")}
	cfg.Workers.Count = 2
	cfg.Workers.BatchSize = 4

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides worker pool tuning on the test config.
func WithWorkers(count, batchSize int) ConfigOption {
	return func(c *config.Config) {
		c.Workers.Count = count
		c.Workers.BatchSize = batchSize
	}
}

// WithExtensions overrides the discovery allow-list on the test config.
func WithExtensions(exts ...string) ConfigOption {
	return func(c *config.Config) {
		c.Discovery.Extensions = exts
	}
}
