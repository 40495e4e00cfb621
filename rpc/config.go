package rpc

import (
	"fmt"
	"time"
)

const (
	defaultAddr            = "localhost:8080"
	defaultDispatchTimeout = 30 * time.Second
)

// Duration is a time.Duration that reads and writes as a Go duration
// string ("250ms", "30s") in JSON and environment variables.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds parameters for serving a store over Connect.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `json:"addr,omitempty" env:"ADDR"`
	// DispatchTimeout bounds how long a Dispatch call waits for its chain to
	// complete, on top of the request context. Merge ignores non-positive
	// values, so a loaded config always keeps a bound. A Config built in code
	// with a zero value passed straight to NewService waits for the request
	// context only.
	DispatchTimeout Duration `json:"dispatch_timeout,omitempty" env:"DISPATCH_TIMEOUT"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            defaultAddr,
		DispatchTimeout: Duration(defaultDispatchTimeout),
	}
}

// Merge applies non-zero values from source into c. A non-positive
// DispatchTimeout counts as unset.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.DispatchTimeout > 0 {
		c.DispatchTimeout = source.DispatchTimeout
	}
}
