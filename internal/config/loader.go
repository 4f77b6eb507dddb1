package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name under $HOME.
	ConfigDir = ".helmsman"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix is the prefix for environment overrides.
	EnvPrefix = "HELMSMAN"
)

// Path returns the config file location: $HELMSMAN_CONFIG when set,
// otherwise ~/.helmsman/config.json.
func Path() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("HELMSMAN_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load builds the effective configuration: defaults, overlaid by the
// JSON file when present, overlaid by HELMSMAN_* environment values.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit file path. A missing
// file is not an error; defaults plus environment apply.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.applyFallbacks()
	return cfg, nil
}

// applyFallbacks fills derived paths and re-establishes invariant
// minimums after file/env overlay.
func (c *Config) applyFallbacks() {
	if c.Paths.Workspace == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Paths.Workspace = wd
		}
	}
	home, _ := os.UserHomeDir()
	if c.Paths.SessionsDir == "" && home != "" {
		c.Paths.SessionsDir = filepath.Join(home, ConfigDir, "sessions")
	}
	if c.Paths.TimelineDB == "" && home != "" {
		c.Paths.TimelineDB = filepath.Join(home, ConfigDir, "timeline.db")
	}
	if c.Loop.MaxIterations <= 0 {
		c.Loop.MaxIterations = Default().Loop.MaxIterations
	}
	if c.Loop.WallClock <= 0 {
		c.Loop.WallClock = Default().Loop.WallClock
	}
	if c.Loop.ParseRetries < 0 {
		c.Loop.ParseRetries = 0
	}
}

// Save writes the configuration as indented JSON, creating the parent
// directory when needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
