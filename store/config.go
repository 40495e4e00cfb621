package store

import (
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/statebox/observability"
)

// Escape modes selectable from configuration.
const (
	EscapeModePanic = "panic"
	EscapeModeLog   = "log"
)

// Config holds store initialization parameters.
type Config struct {
	// Observers names registered observers that receive store events.
	Observers []string `json:"observers,omitempty" env:"OBSERVERS" envSeparator:","`
	// Escape selects how continuation errors surface: "panic" crashes the
	// process, "log" reports them at error level.
	Escape string `json:"escape,omitempty" env:"ESCAPE"`
}

// DefaultConfig returns the default store configuration: slog observer,
// panicking escape.
func DefaultConfig() Config {
	return Config{
		Observers: []string{"slog"},
		Escape:    EscapeModePanic,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.Observers) > 0 {
		c.Observers = source.Observers
	}
	if source.Escape != "" {
		c.Escape = source.Escape
	}
}

func (c *Config) observer() (observability.Observer, error) {
	obs, err := observability.Resolve(c.Observers...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observers: %w", err)
	}
	return obs, nil
}

func (c *Config) escape(logger *slog.Logger) (EscapeFunc, error) {
	switch c.Escape {
	case "", EscapeModePanic:
		return EscapePanic, nil
	case EscapeModeLog:
		return EscapeLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown escape mode: %s", c.Escape)
	}
}
