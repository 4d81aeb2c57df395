package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	Scrape   ScrapeConfig    `yaml:"scrape"`
	Pushover PushoverConfig  `yaml:"pushover"`
	Products []ProductConfig `yaml:"products"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug/release
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite
	Path string `yaml:"path"`
}

// MonitorConfig represents check scheduling configuration.
// An interval of 0 means the cadence is paused.
type MonitorConfig struct {
	AvailabilityIntervalMinutes int `yaml:"availability_interval_minutes"`
	PriceIntervalMinutes        int `yaml:"price_interval_minutes"`
	Workers                     int `yaml:"workers"` // Concurrent checks per batch
}

// ScrapeConfig represents scraper HTTP configuration
type ScrapeConfig struct {
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// PushoverConfig represents Pushover notification credentials
type PushoverConfig struct {
	UserKey  string `yaml:"user_key"`
	APIToken string `yaml:"api_token"`
}

// ProductConfig represents a seed product from the config file
type ProductConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// DefaultConfig returns the configuration used when no config file exists
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5000",
			Mode: "release",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "data/checker.db",
		},
		Monitor: MonitorConfig{
			AvailabilityIntervalMinutes: 5,
			PriceIntervalMinutes:        60,
			Workers:                     3,
		},
		Scrape: ScrapeConfig{
			Timeout: "30s",
		},
	}
}

// LoadConfig loads configuration from a YAML file and applies
// environment variable overrides. A missing file is not an error;
// defaults are used instead.
//
// Recognized environment variables:
//   - PUSHOVER_USER_KEY, PUSHOVER_API_TOKEN
//   - CHECK_INTERVAL_MINUTES, PRICE_CHECK_INTERVAL_MINUTES
//   - DB_PATH
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(config)

	if config.Monitor.Workers <= 0 {
		config.Monitor.Workers = 3
	}

	return config, nil
}

// applyEnvOverrides lets environment variables take precedence over file values
func applyEnvOverrides(config *Config) {
	if val := os.Getenv("PUSHOVER_USER_KEY"); val != "" {
		config.Pushover.UserKey = val
	}
	if val := os.Getenv("PUSHOVER_API_TOKEN"); val != "" {
		config.Pushover.APIToken = val
	}
	if val := os.Getenv("CHECK_INTERVAL_MINUTES"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes >= 0 {
			config.Monitor.AvailabilityIntervalMinutes = minutes
		}
	}
	if val := os.Getenv("PRICE_CHECK_INTERVAL_MINUTES"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes >= 0 {
			config.Monitor.PriceIntervalMinutes = minutes
		}
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		config.Database.Path = val
	}
}
