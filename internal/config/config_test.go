package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
server:
  port: 9090
`

func TestLoadFromBytes_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Gate.RequestsPerPeriod != 10 {
		t.Errorf("expected default requests_per_period 10, got %d", cfg.Gate.RequestsPerPeriod)
	}
	if cfg.Gate.Period != time.Minute {
		t.Errorf("expected default period 1m, got %v", cfg.Gate.Period)
	}
	if cfg.Gate.CacheTTL != 5*time.Minute {
		t.Errorf("expected default cache_ttl 5m, got %v", cfg.Gate.CacheTTL)
	}
	if cfg.Gate.FailureThreshold != 5 {
		t.Errorf("expected default failure_threshold 5, got %d", cfg.Gate.FailureThreshold)
	}
	if cfg.Gate.PacingDelay != 3*time.Second {
		t.Errorf("expected default pacing_delay 3s, got %v", cfg.Gate.PacingDelay)
	}
	if cfg.Gate.RetryBackoffBase != 10*time.Second {
		t.Errorf("expected default retry_backoff_base 10s, got %v", cfg.Gate.RetryBackoffBase)
	}
	if cfg.Upstream.BaseURL != "https://query1.finance.yahoo.com" {
		t.Errorf("unexpected default upstream base_url: %q", cfg.Upstream.BaseURL)
	}
	if !cfg.Metrics.IsEnabled() {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("expected default logging output stdout, got %q", cfg.Logging.Output)
	}
}

func TestLoadFromBytes_FullConfig(t *testing.T) {
	yaml := `
server:
  port: 8081
  shutdown_timeout: 20s
logging:
  output: /var/log/marketgate/gateway.log
  level: debug
  max_size_mb: 10
  max_backups: 2
metrics:
  enabled: false
upstream:
  base_url: http://localhost:9999
  timeout: 5s
gate:
  requests_per_period: 30
  period: 1m
  cache_ttl: 600s
  failure_threshold: 3
  open_timeout: 2m
  pacing_delay: 1s
  max_retries: 4
  queue_capacity: 64
  wait_timeout: 90s
redis:
  enabled: true
  url: redis://cache:6379/1
  history_ttl: 2h
rate_limit:
  requests_per_second: 5
  burst_size: 2
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	if cfg.Metrics.IsEnabled() {
		t.Error("expected metrics disabled")
	}
	if cfg.Gate.RequestsPerPeriod != 30 {
		t.Errorf("expected requests_per_period 30, got %d", cfg.Gate.RequestsPerPeriod)
	}
	if cfg.Gate.CacheTTL != 10*time.Minute {
		t.Errorf("expected cache_ttl 10m, got %v", cfg.Gate.CacheTTL)
	}
	if !cfg.Redis.Enabled || cfg.Redis.HistoryTTL != 2*time.Hour {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 {
		t.Errorf("expected rps 5, got %v", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://secret-host:6379/0")

	yaml := `
redis:
  enabled: true
  url: ${TEST_REDIS_URL}
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if cfg.Redis.URL != "redis://secret-host:6379/0" {
		t.Errorf("env var not expanded, got %q", cfg.Redis.URL)
	}
}

func TestLoadFromBytes_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad log level", "logging:\n  level: verbose\n", "logging.level"},
		{"bad upstream url", "upstream:\n  base_url: ftp://example.com\n", "upstream.base_url"},
		{"negative retries", "gate:\n  max_retries: -1\n", "gate.max_retries"},
		{"negative threshold", "gate:\n  failure_threshold: -2\n", "gate.failure_threshold"},
		{"bad redis url", "redis:\n  enabled: true\n  url: http://wrong\n", "redis.url"},
		{"negative burst", "rate_limit:\n  burst_size: -5\n", "rate_limit.burst_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/gateway.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_FromDisk(t *testing.T) {
	path := t.TempDir() + "/gateway.yaml"
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
}
