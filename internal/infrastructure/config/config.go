package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Modules   ModulesConfig
	Storage   StorageConfig
	Watch     WatchConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ModulesConfig holds the module source area and registry settings.
type ModulesConfig struct {
	Root            string        `envconfig:"MODULES_ROOT" default:"./modules"`
	HostVersion     string        `envconfig:"HOST_VERSION" default:"1.0.0"`
	Ignore          []string      `envconfig:"MODULES_IGNORE"`
	ImportTimeout   time.Duration `envconfig:"IMPORT_TIMEOUT" default:"30s"`
	MaxPackageBytes int64         `envconfig:"MAX_PACKAGE_BYTES" default:"33554432"`
	ScanWorkers     int           `envconfig:"SCAN_WORKERS" default:"4"`
}

// StorageConfig holds the module database settings.
type StorageConfig struct {
	Path    string `envconfig:"STORAGE_PATH" default:"./data/console.db"`
	Enabled bool   `envconfig:"STORAGE_ENABLED" default:"true"`
}

// WatchConfig holds filesystem watcher settings.
type WatchConfig struct {
	Enabled  bool          `envconfig:"WATCH_ENABLED" default:"false"`
	Debounce time.Duration `envconfig:"WATCH_DEBOUNCE" default:"500ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Modules: ModulesConfig{
			Root:            "./modules",
			HostVersion:     "1.0.0",
			ImportTimeout:   30 * time.Second,
			MaxPackageBytes: 32 << 20,
			ScanWorkers:     4,
		},
		Storage: StorageConfig{
			Path:    "./data/console.db",
			Enabled: true,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: 500 * time.Millisecond,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}
