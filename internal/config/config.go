package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Store contains database location settings.
type Store struct {
	DatabasePath string `toml:"database_path"`
}

// Workers contains worker pool tuning.
type Workers struct {
	Count               int `toml:"count"`
	BatchSize           int `toml:"batch_size"`
	StaleTimeoutSeconds int `toml:"stale_timeout_seconds"`
}

// Discovery contains file discovery settings.
type Discovery struct {
	Extensions []string `toml:"extensions"`
}

// Analyzer contains settings consumed by the default analyzer.
type Analyzer struct {
	ScoreThreshold float64 `toml:"score_threshold"`
}

// Extractor contains settings consumed by the default extractor.
type Extractor struct {
	MaxFileBytes int64 `toml:"max_file_bytes"`
}

// Export contains snapshot export settings.
type Export struct {
	PageSize int `toml:"page_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string   `toml:"format"`
	Level  string   `toml:"level"`
	Paths  []string `toml:"paths"`
}

// Config is the root configuration for scour.
type Config struct {
	Store     Store     `toml:"store"`
	Workers   Workers   `toml:"workers"`
	Discovery Discovery `toml:"discovery"`
	Analyzer  Analyzer  `toml:"analyzer"`
	Extractor Extractor `toml:"extractor"`
	Export    Export    `toml:"export"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "scour", "config.toml"), nil
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. An empty path means the conventional location.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	explicit := resolved != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		resolved = defaultPath
	}

	expanded, err := ExpandPath(resolved)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", expanded, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if explicit {
			return nil, fmt.Errorf("config file %s not found", expanded)
		}
	default:
		return nil, fmt.Errorf("read config %s: %w", expanded, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandPath resolves a leading ~ against the current user's home.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}

// DatabasePath returns the expanded store file path.
func (c *Config) DatabasePath() (string, error) {
	return ExpandPath(c.Store.DatabasePath)
}

// StaleTimeout returns the stale-claim threshold as a duration.
func (c *Config) StaleTimeout() time.Duration {
	return time.Duration(c.Workers.StaleTimeoutSeconds) * time.Second
}

func (c *Config) normalize() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	normalized := make([]string, 0, len(c.Discovery.Extensions))
	seen := make(map[string]struct{}, len(c.Discovery.Extensions))
	for _, ext := range c.Discovery.Extensions {
		cleaned := strings.ToLower(strings.TrimSpace(ext))
		if cleaned == "" {
			continue
		}
		if !strings.HasPrefix(cleaned, ".") {
			cleaned = "." + cleaned
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		normalized = append(normalized, cleaned)
	}
	c.Discovery.Extensions = normalized
}
