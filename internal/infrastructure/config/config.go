package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Content   ContentConfig
	Window    WindowConfig
	Bridge    BridgeConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ContentConfig controls where window pages are loaded from.
// A non-empty DevServerURL selects dev mode; otherwise pages come from RendererDist.
type ContentConfig struct {
	DevServerURL string `envconfig:"VITE_DEV_SERVER_URL"`
	RendererDist string `envconfig:"RENDERER_DIST" default:"dist"`
	MainPage     string `envconfig:"MAIN_PAGE" default:"index.html"`
	ChildPage    string `envconfig:"CHILD_PAGE" default:"newWindow.html"`
}

// WindowConfig holds window defaults and load policy.
type WindowConfig struct {
	Width        int           `envconfig:"WINDOW_WIDTH" default:"600"`
	Height       int           `envconfig:"WINDOW_HEIGHT" default:"400"`
	LoadTimeout  time.Duration `envconfig:"WINDOW_LOAD_TIMEOUT" default:"30s"`
	LoadRetries  int           `envconfig:"WINDOW_LOAD_RETRIES" default:"3"`
	ProfilesPath string        `envconfig:"WINDOW_PROFILES"`
}

// BridgeConfig holds renderer bridge configuration.
type BridgeConfig struct {
	// PublicURL is the base URL renderers use to reach the bridge endpoint.
	PublicURL     string  `envconfig:"BRIDGE_PUBLIC_URL"`
	LaunchCommand string  `envconfig:"BRIDGE_LAUNCH_COMMAND"`
	InboundRPS    float64 `envconfig:"BRIDGE_INBOUND_RPS" default:"200"`
	InboundBurst  int     `envconfig:"BRIDGE_INBOUND_BURST" default:"400"`
	QueueSize     int     `envconfig:"BRIDGE_QUEUE_SIZE" default:"256"`
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

// DevMode reports whether pages are served by a dev server.
func (c ContentConfig) DevMode() bool {
	return c.DevServerURL != ""
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Load loads configuration from environment variables.
// Values from a .env file in the working directory are applied first
// without overriding variables that are already set.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles overlays the given dotenv files before reading the environment.
// Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
	}

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
		Content: ContentConfig{
			RendererDist: "dist",
			MainPage:     "index.html",
			ChildPage:    "newWindow.html",
		},
		Window: WindowConfig{
			Width:       600,
			Height:      400,
			LoadTimeout: 30 * time.Second,
			LoadRetries: 3,
		},
		Bridge: BridgeConfig{
			InboundRPS:   200,
			InboundBurst: 400,
			QueueSize:    256,
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
