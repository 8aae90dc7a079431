package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Defaults DefaultsConfig `yaml:"defaults" json:"defaults"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	Resolver ResolverConfig `yaml:"resolver" json:"resolver"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// StorageConfig contains storage paths
type StorageConfig struct {
	// InstancesDir is the root directory under which every managed
	// instance lives in its own subdirectory.
	InstancesDir string `yaml:"instances_dir" json:"instances_dir"`
}

// DefaultsConfig contains fallback values applied when a provisioning
// request leaves a field unset.
type DefaultsConfig struct {
	MinRAM   string `yaml:"min_ram" json:"min_ram"`
	MaxRAM   string `yaml:"max_ram" json:"max_ram"`
	GamePort int    `yaml:"game_port" json:"game_port"`
}

// FetchConfig contains artifact download settings
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
}

// ResolverConfig maps distribution type codes to download URL templates.
// Templates may reference {version}, {loader} and {installer}.
type ResolverConfig struct {
	URLTemplates map[string]string `yaml:"url_templates" json:"url_templates"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// MetricsConfig contains metrics exposition settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Storage: StorageConfig{
			InstancesDir: "./data/instances",
		},
		Defaults: DefaultsConfig{
			MinRAM:   "1G",
			MaxRAM:   "2G",
			GamePort: 25565,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 300,
			UserAgent:      "craftd/1.0 (+https://github.com/modpit/craftd)",
		},
		Resolver: ResolverConfig{
			URLTemplates: map[string]string{},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if instancesDir := os.Getenv("INSTANCES_DIR"); instancesDir != "" {
		cfg.Storage.InstancesDir = instancesDir
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if port := os.Getenv("CRAFTD_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid CRAFTD_PORT %q: %w", port, err)
		}
		cfg.Server.Port = parsed
	}

	cfg.normalizePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.InstancesDir) == "" {
		return fmt.Errorf("storage.instances_dir must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Defaults.GamePort <= 0 || c.Defaults.GamePort > 65535 {
		return fmt.Errorf("defaults.game_port must be between 1 and 65535")
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive")
	}

	return nil
}

func (c *Config) normalizePaths() {
	if abs, err := filepath.Abs(c.Storage.InstancesDir); err == nil {
		c.Storage.InstancesDir = abs
	}
	if c.Logging.File != "" {
		if abs, err := filepath.Abs(c.Logging.File); err == nil {
			c.Logging.File = abs
		}
	}
}
