package config

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReloader_AppliesValidChange(t *testing.T) {
	path := t.TempDir() + "/gateway.yaml"
	writeConfig(t, path, "rate_limit:\n  requests_per_second: 10\n")

	initial, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReloader(path, initial, logger)

	var gotRPS float64
	r.OnReload(func(c *Config) { gotRPS = c.RateLimit.RequestsPerSecond })

	writeConfig(t, path, "rate_limit:\n  requests_per_second: 42\n")
	if !r.Reload() {
		t.Fatal("expected successful reload")
	}

	if gotRPS != 42 {
		t.Fatalf("callback saw rps %v, want 42", gotRPS)
	}
	if r.Current().RateLimit.RequestsPerSecond != 42 {
		t.Fatalf("Current() not updated: %v", r.Current().RateLimit.RequestsPerSecond)
	}
}

func TestReloader_KeepsCurrentOnInvalidConfig(t *testing.T) {
	path := t.TempDir() + "/gateway.yaml"
	writeConfig(t, path, "rate_limit:\n  requests_per_second: 10\n")

	initial, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReloader(path, initial, logger)

	called := false
	r.OnReload(func(*Config) { called = true })

	writeConfig(t, path, "server:\n  port: -1\n")
	if r.Reload() {
		t.Fatal("expected reload to fail on invalid config")
	}

	if called {
		t.Fatal("callbacks must not run on failed reload")
	}
	if r.Current().RateLimit.RequestsPerSecond != 10 {
		t.Fatal("current config must be unchanged after failed reload")
	}
}
