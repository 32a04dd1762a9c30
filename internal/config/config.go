// Package config loads and validates application configuration from an
// optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the API server.
// Values are populated by Load. Environment variables win over the file.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `yaml:"port"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `yaml:"database_url"`

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string `yaml:"cors_origins"`

	// SessionSecret signs session cookies. Required.
	SessionSecret string `yaml:"session_secret"`

	// SessionCookie names the session cookie. Defaults to "__session".
	SessionCookie string `yaml:"session_cookie"`

	// MapsAPIKey enables routed driving mileage. Empty means great-circle.
	MapsAPIKey string `yaml:"maps_api_key"`

	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	MaxBodyBytes    int64   `yaml:"max_body_bytes"`

	// AutoMigrate applies pending migrations at boot.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// Defaults returns a Config with every optional field at its default.
func Defaults() Config {
	return Config{
		Port:            "8080",
		LogLevel:        "info",
		CORSOrigins:     []string{"http://localhost:5173"},
		SessionCookie:   "__session",
		RateLimitPerSec: 10,
		RateLimitBurst:  20,
		MaxBodyBytes:    1 << 20,
	}
}

// Load reads the YAML file named by CONFIG_FILE (if set), applies
// environment overrides, and validates the result.
// Returns an error listing any required values that are not set.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if cfg.RateLimitPerSec <= 0 || cfg.RateLimitBurst <= 0 {
		return Config{}, errors.New("rate limit and burst must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, errors.New("max body bytes must be positive")
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overwrites cfg fields whose environment variable is set and non-empty.
func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.SessionCookie, "SESSION_COOKIE")
	setString(&cfg.MapsAPIKey, "MAPS_API_KEY")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}

	var errs []error
	if v := os.Getenv("RATE_LIMIT_PER_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envErr("RATE_LIMIT_PER_SEC", err))
		cfg.RateLimitPerSec = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("RATE_LIMIT_BURST", err))
		cfg.RateLimitBurst = n
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		errs = append(errs, envErr("MAX_BODY_BYTES", err))
		cfg.MaxBodyBytes = n
	}
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("AUTO_MIGRATE", err))
		cfg.AutoMigrate = b
	}
	return errors.Join(errs...)
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
