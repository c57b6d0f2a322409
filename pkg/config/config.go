/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Index modes
const (
	// IndexModeMemory rebuilds the index by replay and serves reads from it
	IndexModeMemory = "memory"
	// IndexModeDisk serves reads through the persisted snapshot and re-snapshots after writes
	IndexModeDisk = "disk"
)

// Config represents the actionkv configuration
type Config struct {
	DataFile   string  `yaml:"data_file"`
	IndexMode  string  `yaml:"index_mode"`
	IndexKey   string  `yaml:"index_key"`
	SyncWrites bool    `yaml:"sync_writes"`
	Logging    Logging `yaml:"logging"`
	Metrics    Metrics `yaml:"metrics"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics contains metrics configuration
type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataFile:   "./data/store.akv",
		IndexMode:  IndexModeMemory,
		IndexKey:   "+index",
		SyncWrites: false,
		Logging: Logging{
			Level: "warn",
		},
		Metrics: Metrics{
			Enabled: false,
		},
	}
}

// LoadConfig loads configuration from the specified path.
// Fields missing from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.DataFile == "" {
		return fmt.Errorf("data_file is required")
	}
	switch c.IndexMode {
	case IndexModeMemory, IndexModeDisk:
	default:
		return fmt.Errorf("index_mode must be %q or %q, got %q", IndexModeMemory, IndexModeDisk, c.IndexMode)
	}
	if c.IndexKey == "" {
		return fmt.Errorf("index_key must not be empty")
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level
func (l Logging) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid logging level %q: %w", l.Level, err)
	}
	return level, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./akv.yaml"
	}

	// For Linux/macOS, use ~/.config/akv/config.yaml
	return filepath.Join(homeDir, ".config", "akv", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
