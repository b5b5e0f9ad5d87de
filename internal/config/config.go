package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds the runtime settings for the case desk backend.
type Config struct {
	Port        string
	DatabaseURL string

	// Origins echoed back by the CORS middleware.
	AllowedOrigins []string

	// RequireAuth puts every /api route behind the session middleware.
	RequireAuth   bool
	SecureCookies bool
	SessionTTL    time.Duration

	// AssignTimeout bounds a single AssignCase unit of work.
	AssignTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	// Redis is optional. When RedisAddr is empty no officer lock is taken.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
}

// DefaultAllowedOrigins covers the local dashboard dev servers.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func Default() Config {
	return Config{
		Port:           "5050",
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		SessionTTL:     6 * time.Hour,
		AssignTimeout:  5 * time.Second,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		LockTTL:        10 * time.Second,
	}
}

// fileConfig mirrors Config for the optional YAML file. Durations are
// strings ("5s", "6h") and parsed with time.ParseDuration.
type fileConfig struct {
	Port           string   `yaml:"port"`
	DatabaseURL    string   `yaml:"database_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RequireAuth    *bool    `yaml:"require_auth"`
	SecureCookies  *bool    `yaml:"secure_cookies"`
	SessionTTL     string   `yaml:"session_ttl"`
	AssignTimeout  string   `yaml:"assign_timeout"`
	RateLimit      struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		LockTTL  string `yaml:"lock_ttl"`
	} `yaml:"redis"`
}

// Load builds the configuration from defaults, then the YAML file named by
// STATION_CONFIG (if any), then environment variables.
//
// Environment variables:
//   - PORT (default: 5050)
//   - DATABASE_URL (required)
//   - ALLOWED_ORIGINS: comma-separated origin allow-list
//   - REQUIRE_AUTH, SECURE_COOKIES: "true" / "false"
//   - SESSION_TTL, ASSIGN_TIMEOUT, ASSIGN_LOCK_TTL: Go durations
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("STATION_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read STATION_CONFIG: %w", err)
		}
		if err := applyYAML(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.AssignTimeout <= 0 {
		return fmt.Errorf("ASSIGN_TIMEOUT must be positive, got %s", c.AssignTimeout)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	// The officer lock must outlive the assignment it guards.
	if c.RedisEnabled() && c.LockTTL <= c.AssignTimeout {
		return fmt.Errorf("ASSIGN_LOCK_TTL (%s) must exceed ASSIGN_TIMEOUT (%s)", c.LockTTL, c.AssignTimeout)
	}
	return nil
}

// RedisEnabled reports whether an officer lock backend is configured.
func (c Config) RedisEnabled() bool { return c.RedisAddr != "" }

func applyYAML(cfg *Config, raw []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}

	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.RequireAuth != nil {
		cfg.RequireAuth = *fc.RequireAuth
	}
	if fc.SecureCookies != nil {
		cfg.SecureCookies = *fc.SecureCookies
	}
	if fc.RateLimit.RPS > 0 {
		cfg.RateLimitRPS = fc.RateLimit.RPS
	}
	if fc.RateLimit.Burst > 0 {
		cfg.RateLimitBurst = fc.RateLimit.Burst
	}
	if fc.Redis.Addr != "" {
		cfg.RedisAddr = fc.Redis.Addr
		cfg.RedisPassword = fc.Redis.Password
		cfg.RedisDB = fc.Redis.DB
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"session_ttl", fc.SessionTTL, &cfg.SessionTTL},
		{"assign_timeout", fc.AssignTimeout, &cfg.AssignTimeout},
		{"redis.lock_ttl", fc.Redis.LockTTL, &cfg.LockTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("REQUIRE_AUTH"); v != "" {
		cfg.RequireAuth = isTrue(v)
	}
	if v := os.Getenv("SECURE_COOKIES"); v != "" {
		cfg.SecureCookies = isTrue(v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}

	for key, dst := range map[string]*time.Duration{
		"SESSION_TTL":     &cfg.SessionTTL,
		"ASSIGN_TIMEOUT":  &cfg.AssignTimeout,
		"ASSIGN_LOCK_TTL": &cfg.LockTTL,
	} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
