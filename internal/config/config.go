// Package config provides YAML configuration loading with validation and
// environment variable substitution for the market-data gateway.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Gate      GateConfig      `yaml:"gate" json:"gate"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LoggingConfig holds log output and rotation settings.
type LoggingConfig struct {
	Output     string `yaml:"output" json:"output"`           // "stdout", "stderr", or file path; default: "stdout"
	Level      string `yaml:"level" json:"level"`             // "debug", "info", "warn", "error"; default: "info"
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"` // rotation threshold; default: 100
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // rotated files kept; default: 3
}

// MetricsConfig holds Prometheus metrics endpoint settings.
// Enabled defaults to true; set to false to disable metrics.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// IsEnabled returns whether metrics are enabled (defaults to true).
func (m MetricsConfig) IsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

// UpstreamConfig holds the market-data provider settings.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// GateConfig holds the admission-control policy. It is read once at
// startup and is not hot-reloadable.
type GateConfig struct {
	RequestsPerPeriod int           `yaml:"requests_per_period" json:"requests_per_period"`
	Period            time.Duration `yaml:"period" json:"period"`
	MaxConcurrent     int           `yaml:"max_concurrent" json:"max_concurrent"` // informational; dispatch is sequential
	CacheTTL          time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	FailureThreshold  int           `yaml:"failure_threshold" json:"failure_threshold"`
	OpenTimeout       time.Duration `yaml:"open_timeout" json:"open_timeout"`
	PacingDelay       time.Duration `yaml:"pacing_delay" json:"pacing_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoffBase  time.Duration `yaml:"retry_backoff_base" json:"retry_backoff_base"`
	QueueCapacity     int           `yaml:"queue_capacity" json:"queue_capacity"`
	WaitTimeout       time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
}

// RedisConfig holds the second-level cache settings.
type RedisConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	URL        string        `yaml:"url" json:"url"`
	Password   string        `yaml:"password" json:"password"`
	HistoryTTL time.Duration `yaml:"history_ttl" json:"history_ttl"`
}

// RateLimitConfig holds the inbound per-client rate limiter settings.
// These are hot-reloadable.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
}

// ValidLogLevels are the accepted logging.level strings.
var ValidLogLevels = map[string]bool{
	"":      true, // empty means default ("info")
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes. Useful for testing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Index resolution holds the response open across many paced
		// dispatches, so the write timeout is generous.
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}

	g := &cfg.Gate
	if g.RequestsPerPeriod == 0 {
		g.RequestsPerPeriod = 10
	}
	if g.Period == 0 {
		g.Period = time.Minute
	}
	if g.MaxConcurrent == 0 {
		g.MaxConcurrent = 2
	}
	if g.CacheTTL == 0 {
		g.CacheTTL = 5 * time.Minute
	}
	if g.FailureThreshold == 0 {
		g.FailureThreshold = 5
	}
	if g.OpenTimeout == 0 {
		g.OpenTimeout = 5 * time.Minute
	}
	if g.PacingDelay == 0 {
		g.PacingDelay = 3 * time.Second
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = 3
	}
	if g.RetryBackoffBase == 0 {
		g.RetryBackoffBase = 10 * time.Second
	}
	if g.QueueCapacity == 0 {
		g.QueueCapacity = 256
	}
	if g.WaitTimeout == 0 {
		g.WaitTimeout = 2 * time.Minute
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Redis.HistoryTTL == 0 {
		cfg.Redis.HistoryTTL = time.Hour
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 10
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if !ValidLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be positive when output is a file path")
		}
	}

	if !strings.HasPrefix(cfg.Upstream.BaseURL, "http://") && !strings.HasPrefix(cfg.Upstream.BaseURL, "https://") {
		return fmt.Errorf("upstream.base_url must be an http(s) URL, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}

	g := cfg.Gate
	if g.RequestsPerPeriod < 1 {
		return fmt.Errorf("gate.requests_per_period must be positive")
	}
	if g.Period <= 0 {
		return fmt.Errorf("gate.period must be positive")
	}
	if g.FailureThreshold < 1 {
		return fmt.Errorf("gate.failure_threshold must be positive")
	}
	if g.OpenTimeout <= 0 {
		return fmt.Errorf("gate.open_timeout must be positive")
	}
	if g.PacingDelay < 0 {
		return fmt.Errorf("gate.pacing_delay must be non-negative")
	}
	if g.MaxRetries < 1 {
		return fmt.Errorf("gate.max_retries must be positive")
	}
	if g.QueueCapacity < 1 {
		return fmt.Errorf("gate.queue_capacity must be positive")
	}
	if g.WaitTimeout <= 0 {
		return fmt.Errorf("gate.wait_timeout must be positive")
	}

	if cfg.Redis.Enabled {
		if !strings.HasPrefix(cfg.Redis.URL, "redis://") && !strings.HasPrefix(cfg.Redis.URL, "rediss://") {
			return fmt.Errorf("redis.url must be a redis:// URL, got %q", cfg.Redis.URL)
		}
	}

	if cfg.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive")
	}
	if cfg.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("rate_limit.burst_size must be positive")
	}

	return nil
}
