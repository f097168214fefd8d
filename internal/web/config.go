package web

import (
	"github.com/polematch/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Debug    bool           `json:"debug"`

	// RulesPath, when set, is watched and the engine rebuilt on change.
	RulesPath string `json:"rules_path"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`

	// MaxBodyBytes caps a request body.
	MaxBodyBytes int64 `json:"max_body_bytes"`

	// RateLimit is the sustained API request rate per second; 0 disables it.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`
}

// DatabaseConfig contains audit store settings. Runs are only persisted
// when Enabled is true.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			MaxBodyBytes: 64 << 20,
			RateBurst:    20,
		},
	}
}

// ConfigFromEnv overlays POLEMATCH_WEB_* and POLEMATCH_DATABASE_* variables
// on the defaults.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.Server.Host = config.GetEnv(config.EnvPrefix+"WEB_HOST", cfg.Server.Host)
	cfg.Server.Port = config.GetEnvInt(config.EnvPrefix+"WEB_PORT", cfg.Server.Port)
	cfg.Server.MaxBodyBytes = int64(config.GetEnvInt(config.EnvPrefix+"WEB_MAX_BODY_BYTES", int(cfg.Server.MaxBodyBytes)))
	cfg.Server.RateLimit = config.GetEnvFloat(config.EnvPrefix+"WEB_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateBurst = config.GetEnvInt(config.EnvPrefix+"WEB_RATE_BURST", cfg.Server.RateBurst)
	cfg.Database.URL = config.GetEnv(config.EnvPrefix+"DATABASE_URL", "")
	cfg.Database.Enabled = config.GetEnvBool(config.EnvPrefix+"DATABASE_ENABLED", cfg.Database.URL != "")
	cfg.Debug = config.GetEnvBool(config.EnvPrefix+"DEBUG", false)
	if config.GetEnvBool(config.EnvPrefix+"WATCH_RULES", false) {
		cfg.RulesPath = config.GetEnv(config.EnvPrefix+"RULES", "")
	}
	return cfg
}
