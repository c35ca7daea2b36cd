// Package config loads the service configuration: an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Drafts    DraftsConfig    `yaml:"drafts"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"FRAVIK_ADDR"`
}

// DatabaseConfig selects the application store. An empty URL runs the
// service on the in-memory store.
type DatabaseConfig struct {
	URL          string `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
}

// RedisConfig selects the draft store. An empty address keeps drafts in
// memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// DraftsConfig tunes draft retention.
type DraftsConfig struct {
	MaxAgeDays    int    `yaml:"max_age_days" env:"DRAFT_MAX_AGE_DAYS"`
	SweepSchedule string `yaml:"sweep_schedule" env:"DRAFT_SWEEP_SCHEDULE"`
}

// RateLimitConfig tunes the per-client request limiter.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// CORSConfig lists the allowed origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when no file or environment is
// present.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Drafts:    DraftsConfig{MaxAgeDays: 7, SweepSchedule: "0 3 * * *"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads config/services.yaml if present and applies environment
// overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "services.yaml"))
}

// LoadFromPath loads the configuration from a specific YAML path, then
// applies environment overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Server.Addr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if cfg.Drafts.MaxAgeDays <= 0 {
		cfg.Drafts.MaxAgeDays = 7
	}
	return cfg, nil
}
