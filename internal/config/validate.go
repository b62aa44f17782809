package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	if strings.TrimSpace(c.Store.DatabasePath) == "" {
		return errors.New("store.database_path must be set")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 1 {
		return fmt.Errorf("workers.count must be at least 1, got %d", c.Workers.Count)
	}
	if c.Workers.BatchSize < 1 {
		return fmt.Errorf("workers.batch_size must be at least 1, got %d", c.Workers.BatchSize)
	}
	if c.Workers.StaleTimeoutSeconds < 1 {
		return fmt.Errorf("workers.stale_timeout_seconds must be at least 1, got %d", c.Workers.StaleTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if len(c.Discovery.Extensions) == 0 {
		return errors.New("discovery.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	if c.Analyzer.ScoreThreshold < 0 || c.Analyzer.ScoreThreshold > 1 {
		return errors.New("analyzer.score_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.PageSize < 1 {
		return fmt.Errorf("export.page_size must be at least 1, got %d", c.Export.PageSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
