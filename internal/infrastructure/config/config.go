package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Widget    WidgetConfig
	Storage   StorageConfig
	Bundle    BundleConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Sample      bool   `envconfig:"LOG_SAMPLE" default:"true"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// WidgetConfig holds widget runtime configuration.
type WidgetConfig struct {
	TickInterval     time.Duration `envconfig:"WIDGET_TICK_INTERVAL" default:"100ms"`
	RemovalGrace     time.Duration `envconfig:"WIDGET_REMOVAL_GRACE" default:"100ms"`
	PersistInterval  time.Duration `envconfig:"WIDGET_PERSIST_INTERVAL" default:"1s"`
	HandlerTimeout   time.Duration `envconfig:"WIDGET_HANDLER_TIMEOUT" default:"5s"`
	MaxCallStackSize int           `envconfig:"WIDGET_MAX_CALL_STACK" default:"1024"`
	PoolSize         int           `envconfig:"WIDGET_POOL_SIZE" default:"4"`
	Locale           string        `envconfig:"WIDGET_LOCALE" default:"en-US"`
}

// StorageConfig holds persisted-state storage configuration.
// An empty path keeps state in memory only.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" default:""`
}

// BundleConfig holds widget bundle loading configuration.
type BundleConfig struct {
	Dir          string        `envconfig:"BUNDLE_DIR" default:"./widgets"`
	Watch        bool          `envconfig:"BUNDLE_WATCH" default:"false"`
	FetchTimeout time.Duration `envconfig:"BUNDLE_FETCH_TIMEOUT" default:"30s"`
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
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Sample:      true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Widget: WidgetConfig{
			TickInterval:     100 * time.Millisecond,
			RemovalGrace:     100 * time.Millisecond,
			PersistInterval:  time.Second,
			HandlerTimeout:   5 * time.Second,
			MaxCallStackSize: 1024,
			PoolSize:         4,
			Locale:           "en-US",
		},
		Bundle: BundleConfig{
			Dir:          "./widgets",
			FetchTimeout: 30 * time.Second,
		},
	}
}
