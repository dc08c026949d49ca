// Package config provides configuration for the dmr-go client.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DMR_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the llama.cpp engine endpoint of a local
// Docker-Model-Runner-style daemon.
const DefaultBaseURL = "http://localhost:12434/engines/llama.cpp/v1"

// Config holds all configuration for the dmr-go client.
type Config struct {
	// BaseURL is the engine endpoint, e.g. DefaultBaseURL. Trailing
	// slashes are stripped by the client.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a bearer token on every request when set.
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key

	// Timeout applies to non-streaming requests. Streaming requests are
	// governed by context cancellation instead. Default: 120s.
	Timeout Duration `yaml:"timeout"`

	// Debug lists enabled debug categories (see pkg/debug).
	Debug    string `yaml:"debug"`
	LogLevel string `yaml:"log_level"` // default: "INFO"

	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus instrumentation settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// Duration wraps time.Duration so YAML values like "90s" decode naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns the wrapped time.Duration.
func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Timeout:  Duration(120 * time.Second),
		LogLevel: "INFO",
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
