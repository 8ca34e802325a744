package bridge

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config defines which optional properties the bridge attaches to spans.
// A Config is a value: the With* methods return modified copies and a
// Bridge keeps the copy it was constructed with for its whole lifetime.
type Config struct {
	// IncludeLocation adds code.filepath, code.namespace and code.lineno
	IncludeLocation bool `mapstructure:"include_location" envconfig:"INCLUDE_LOCATION" default:"true"`

	// IncludeThreads adds thread.id and, when the goroutine is named, thread.name
	IncludeThreads bool `mapstructure:"include_threads" envconfig:"INCLUDE_THREADS" default:"true"`

	// IncludeLevel adds the span's level as a "level" property
	IncludeLevel bool `mapstructure:"include_level" envconfig:"INCLUDE_LEVEL" default:"false"`
}

// DefaultConfig returns the default configuration: location and thread
// properties on, level off.
func DefaultConfig() Config {
	return Config{
		IncludeLocation: true,
		IncludeThreads:  true,
		IncludeLevel:    false,
	}
}

// WithLocation returns a copy of c with source location properties toggled.
func (c Config) WithLocation(include bool) Config {
	c.IncludeLocation = include
	return c
}

// WithThreads returns a copy of c with thread properties toggled.
func (c Config) WithThreads(include bool) Config {
	c.IncludeThreads = include
	return c
}

// WithLevel returns a copy of c with the span level property toggled.
func (c Config) WithLevel(include bool) Config {
	c.IncludeLevel = include
	return c
}

// LoadConfig reads the configuration from environment variables, e.g.
// TRACEBRIDGE_INCLUDE_LEVEL=true for the prefix "tracebridge".
func LoadConfig(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load bridge config: %w", err)
	}
	return cfg, nil
}
