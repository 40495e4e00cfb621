// Package config assembles the configuration of every statebox subsystem
// from a JSON file and STATEBOX_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/tailored-agentic-units/statebox/observability"
	"github.com/tailored-agentic-units/statebox/rpc"
	"github.com/tailored-agentic-units/statebox/store"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "STATEBOX_"

// Config holds initialization parameters for all subsystems.
type Config struct {
	Store    store.Config `json:"store" envPrefix:"STORE_"`
	Server   rpc.Config   `json:"server" envPrefix:"SERVER_"`
	LogLevel string       `json:"log_level,omitempty" env:"LOG_LEVEL"`
}

// DefaultConfig returns a Config with defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Store:    store.DefaultConfig(),
		Server:   rpc.DefaultConfig(),
		LogLevel: "info",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Store.Merge(&source.Store)
	c.Server.Merge(&source.Server)

	if source.LogLevel != "" {
		c.LogLevel = source.LogLevel
	}
}

// Level resolves LogLevel.
func (c *Config) Level() (observability.Level, error) {
	return observability.ParseLevel(c.LogLevel)
}

// LoadConfig builds a Config from defaults, the JSON file at filename (when
// non-empty), and environment variables, in that order of precedence.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var loaded Config
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Merge(&loaded)
	}

	var fromEnv Config
	if err := env.ParseWithOptions(&fromEnv, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Merge(&fromEnv)

	if _, err := cfg.Level(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
