package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DMR_CONFIG env, ./dmr.yaml,
//     ~/.config/dmr/config.yaml)
//  3. Environment variable overrides (DMR_ prefix)
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
//  1. Explicit configPath argument
//  2. DMR_CONFIG environment variable
//  3. ./dmr.yaml in the current directory
//  4. ~/.config/dmr/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("DMR_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{"dmr.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "dmr", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies DMR_* environment variables on top of the
// file-provided values. Environment always wins over the file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DMR_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DMR_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DMR_API_KEY_FILE"); v != "" {
		cfg.APIKeyFile = v
	}
	if v := os.Getenv("DMR_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DMR_TIMEOUT: invalid duration %q: %w", v, err)
		}
		cfg.Timeout = Duration(parsed)
	}
	if v := os.Getenv("DMR_DEBUG"); v != "" {
		cfg.Debug = v
	}
	if v := os.Getenv("DMR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DMR_METRICS"); v != "" {
		cfg.Metrics.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

// resolveFileReferences reads _file variants into their target fields.
// A directly configured value takes precedence over the file reference.
func resolveFileReferences(cfg *Config) error {
	if cfg.APIKey == "" && cfg.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.APIKeyFile)
		if err != nil {
			return fmt.Errorf("reading api_key_file: %w", err)
		}
		cfg.APIKey = strings.TrimSpace(string(data))
	}
	return nil
}
