package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the default prefix for environment overrides.
const EnvPrefix = "COLLOQUY"

// Loader loads configuration with the precedence defaults -> YAML file
// -> environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("colloquy.yaml").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with the default env prefix and no file.
func NewLoader() *Loader {
	return &Loader{envPrefix: EnvPrefix}
}

// WithConfigPath sets the YAML file to load.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load builds the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto cfg.
func (l *Loader) applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("METRICS_ADDR", &cfg.Server.MetricsAddr)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("STORE_BACKEND", &cfg.Store.Backend)
	setString("STORE_BASE_DIR", &cfg.Store.BaseDir)
	setString("STORE_SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("REDIS_ADDR", &cfg.Store.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	setInt("REDIS_DB", &cfg.Store.Redis.DB)
	setBool("TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	setString("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	// Provider API keys can be supplied per provider name, e.g.
	// COLLOQUY_PROVIDER_SOCRATES_API_KEY for a provider named socrates.
	for i := range cfg.Providers {
		key := l.envPrefix + "_PROVIDER_" + envName(cfg.Providers[i].Name) + "_API_KEY"
		if v, ok := os.LookupEnv(key); ok {
			cfg.Providers[i].APIKey = v
		}
	}
}

// envName uppercases a provider name into its env variable fragment.
func envName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-('a'-'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
