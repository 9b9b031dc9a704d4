// Package config provides the unified configuration for the colloquy
// server: defaults, YAML file loading, and environment overrides, in
// that precedence order.
package config

import (
	"fmt"
	"time"

	"github.com/colloquyhq/colloquy/types"
)

// Config is the complete server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Store        StoreConfig        `yaml:"store"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Conversation ConversationConfig `yaml:"conversation"`
	Providers    []ProviderConfig   `yaml:"providers"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// StoreConfig selects and configures the conversation store backend.
type StoreConfig struct {
	Backend    string      `yaml:"backend"` // memory, file, redis, sqlite
	BaseDir    string      `yaml:"base_dir"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// ConversationConfig holds the per-session defaults and scheduler
// delays applied to new conversations.
type ConversationConfig struct {
	Defaults       types.SessionConfig `yaml:"defaults"`
	PacingDelay    time.Duration       `yaml:"pacing_delay"`
	AutoRoundDelay time.Duration       `yaml:"auto_round_delay"`
}

// ProviderConfig declares one response provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"` // openai or anthropic
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the baseline configuration before file and env
// overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend: "memory",
			BaseDir: "./data",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "colloquy:",
			},
			SQLitePath: "./data/colloquy.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "colloquy",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Conversation: ConversationConfig{
			Defaults: types.DefaultSessionConfig(),
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	switch c.Store.Backend {
	case "memory", "file", "redis", "sqlite":
	default:
		return fmt.Errorf("store.backend %q is not one of memory, file, redis, sqlite", c.Store.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	seen := make(map[string]struct{})
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name must be set")
		}
		if p.Name == types.SpeakerHuman {
			return fmt.Errorf("provider name %q is reserved", types.SpeakerHuman)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		switch p.Kind {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("provider %q kind %q is not one of openai, anthropic", p.Name, p.Kind)
		}
	}
	if c.Conversation.Defaults.ModerationPauseThreshold < 1 {
		return fmt.Errorf("conversation.defaults.moderation_pause_threshold must be >= 1")
	}
	return nil
}
