package rewardd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for rewardd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	CatalogPath   string          `yaml:"catalog"`
	Treasury      string          `yaml:"treasury"`
	Storage       StorageConfig   `yaml:"storage"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Audit         AuditConfig     `yaml:"audit"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Session       SessionConfig   `yaml:"session"`
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	// Backend is one of "leveldb", "bolt" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// AuthConfig configures bearer JWT verification. The token subject is the
// calling principal.
type AuthConfig struct {
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	HMACSecretEnv  string   `yaml:"hmac_secret_env"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

// RateLimitConfig throttles callers per principal.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// AuditConfig configures the relational event log. An empty driver disables
// it.
type AuditConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

// LoggingConfig routes service logs.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig toggles OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Metrics  bool   `yaml:"metrics"`
	Traces   bool   `yaml:"traces"`
}

// SessionConfig bounds capability token lifetimes.
type SessionConfig struct {
	MaxTTL Duration `yaml:"max_ttl"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Audit.normalise(); err != nil {
		return cfg, fmt.Errorf("audit: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "leveldb"
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Path == "" && cfg.Storage.Backend != "memory" {
		cfg.Storage.Path = "data/rewardd"
	}
	if cfg.Auth.ClockSkew.Duration <= 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 50
	}
	cfg.Audit.Driver = strings.ToLower(strings.TrimSpace(cfg.Audit.Driver))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Treasury) == "" {
		return fmt.Errorf("treasury must be configured")
	}
	switch cfg.Storage.Backend {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("configure hmac_secret, hmac_secret_file or hmac_secret_env for API authentication")
	}
	switch cfg.Audit.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported audit driver %q", cfg.Audit.Driver)
	}
	if cfg.Audit.Driver != "" && cfg.Audit.DSN == "" {
		return fmt.Errorf("audit dsn must be configured for driver %s", cfg.Audit.Driver)
	}
	if cfg.Session.MaxTTL.Duration < 0 {
		return fmt.Errorf("session max_ttl must not be negative")
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("auth configuration missing")
	}
	a.HMACSecret = strings.TrimSpace(a.HMACSecret)
	a.HMACSecretEnv = strings.TrimSpace(a.HMACSecretEnv)
	a.HMACSecretFile = strings.TrimSpace(a.HMACSecretFile)
	if a.HMACSecret != "" {
		return nil
	}
	switch {
	case a.HMACSecretEnv != "":
		value := strings.TrimSpace(os.Getenv(a.HMACSecretEnv))
		if value == "" {
			return fmt.Errorf("hmac_secret_env %s is empty", a.HMACSecretEnv)
		}
		a.HMACSecret = value
	case a.HMACSecretFile != "":
		contents, err := os.ReadFile(a.HMACSecretFile)
		if err != nil {
			return fmt.Errorf("read hmac_secret_file: %w", err)
		}
		a.HMACSecret = strings.TrimSpace(string(contents))
	}
	return nil
}

func (a *AuditConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("audit configuration missing")
	}
	a.DSN = strings.TrimSpace(a.DSN)
	a.DSNEnv = strings.TrimSpace(a.DSNEnv)
	if a.DSN == "" && a.DSNEnv != "" {
		value := strings.TrimSpace(os.Getenv(a.DSNEnv))
		if value == "" {
			return fmt.Errorf("dsn_env %s is empty", a.DSNEnv)
		}
		a.DSN = value
	}
	return nil
}
