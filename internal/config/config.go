// Package config loads the server configuration from YAML with environment
// overrides for deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Database struct {
		// URL is a Postgres DSN. Empty selects the in-memory store.
		URL string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		// Addr enables the ranked-list cache when set.
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string `yaml:"jwt_secret"`
		TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`

	Email struct {
		// APIKey enables the deliverability API; empty falls back to a
		// format-only check.
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"email"`

	RateLimit struct {
		RequestsPerSecond int `yaml:"requests_per_second"`
		Burst             int `yaml:"burst"`
	} `yaml:"rate_limit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Rescore struct {
		Enabled bool `yaml:"enabled"`
		// Schedule is a cron expression for the periodic rescore pass.
		Schedule string `yaml:"schedule"`
	} `yaml:"rescore"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, or the defaults with environment
// overrides if the file is absent.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the development defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Auth.TokenTTLMinutes = 60 * 24
	cfg.RateLimit.RequestsPerSecond = 20
	cfg.RateLimit.Burst = 40
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Redis.TTLSeconds = 30
	cfg.Rescore.Schedule = "0 3 * * *"
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WAITROOM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WAITROOM_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("WAITROOM_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("WAITROOM_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("WAITROOM_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("WAITROOM_EMAILABLE_API_KEY"); v != "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv("WAITROOM_RESCORE_SCHEDULE"); v != "" {
		c.Rescore.Schedule = v
		c.Rescore.Enabled = true
	}
	if v := os.Getenv("WAITROOM_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		c.CORS.AllowedOrigins = origins
	}
	if v := os.Getenv("WAITROOM_RATE_LIMIT_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit.RequestsPerSecond = n
		}
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required (set WAITROOM_JWT_SECRET)")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	return nil
}

// TokenTTL returns the JWT lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// RedisTTL returns the ranked-list cache lifetime.
func (c *Config) RedisTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
