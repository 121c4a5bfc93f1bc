// Package config provides the engine's configuration.
//
// Configuration can be loaded from:
//  1. YAML file (with ${VAR} expansion)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	engine, err := storefront.New(cfg, session)
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the entire engine configuration.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig locates the remote store service.
type APIConfig struct {
	// BaseURL is the root of the store API, e.g.
	// "https://shop.example.com/api".
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds every request to the service.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig locates the durable client-side state.
type StorageConfig struct {
	// DatabasePath is the SQLite file holding the persisted cart. Empty
	// means keep the cart in memory only.
	DatabasePath string `yaml:"database_path"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file, expanding ${VAR} references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("STOREFRONT_API_URL", "http://localhost:5000/api"),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("STOREFRONT_DB_PATH", "storefront.db"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("STOREFRONT_LOG_LEVEL", "info"),
				Format: getEnv("STOREFRONT_LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries config.yaml first, then falls back to environment
// variables.
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries the given path first, then falls back to
// environment variables.
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func (c *Config) applyDefaults() {
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 30
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
