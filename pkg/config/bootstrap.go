package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the file looked up inside the config directory.
const ConfigFileName = "commandbot.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COMMANDBOT_"

// LoadBootstrapConfig loads commandbot.yaml from configDir, applies
// environment overrides and defaults, and validates the result.
func LoadBootstrapConfig(configDir string) (*Config, error) {
	return LoadConfig(filepath.Join(configDir, ConfigFileName))
}

// LoadConfig loads configuration from the specified file path
// and applies environment variable overrides
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file '%s': %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies environment overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from COMMANDBOT_* variables. Unset variables
// leave the loaded values alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
