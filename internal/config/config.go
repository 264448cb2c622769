// Package config loads the tracker's runtime configuration from a YAML
// file and environment variables. Priority: ENV > YAML > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracker  TrackerConfig  `yaml:"tracker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"TINYTRACK_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"TINYTRACK_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"TINYTRACK_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"TINYTRACK_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"TINYTRACK_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// MaxBodyBytes caps request body size on the API.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"TINYTRACK_MAX_BODY_BYTES" env-default:"1048576"`
	// RateLimitRPS and RateLimitBurst shape the per-instance request budget.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"   env:"TINYTRACK_RATE_LIMIT_RPS"   env-default:"50"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"TINYTRACK_RATE_LIMIT_BURST" env-default:"100"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty DSN runs
// the server on in-memory stores, which is only useful for demos and tests.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"TINYTRACK_DB_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns"     env:"TINYTRACK_DB_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"     env:"TINYTRACK_DB_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"  env:"TINYTRACK_DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

// AuthConfig holds token issuance settings. The signing secret itself is
// read by the auth package from TINYTRACK_AUTH_SECRET.
type AuthConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl" env:"TINYTRACK_TOKEN_TTL" env-default:"12h"`
}

// TrackerConfig holds installation-wide tracker toggles.
type TrackerConfig struct {
	// PublicProjects enables anonymous read access to public projects.
	PublicProjects bool `yaml:"public_projects" env:"TINYTRACK_PUBLIC_PROJECTS" env-default:"false"`
}

// Load reads configuration from a YAML file and environment variables.
// The YAML file path comes from TINYTRACK_CONFIG (fallback "./config.yaml");
// a missing default file falls back to ENV + defaults only.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("TINYTRACK_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit values must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Database.DSN != "" && c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max open conns must be positive")
	}
	return nil
}
