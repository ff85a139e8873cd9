package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Polling.MinSleepSeconds != 3 {
		t.Errorf("MinSleepSeconds = %d, want 3", cfg.Polling.MinSleepSeconds)
	}
	if cfg.Polling.MaxSleepSeconds != 60 {
		t.Errorf("MaxSleepSeconds = %d, want 60", cfg.Polling.MaxSleepSeconds)
	}
	if cfg.Polling.JitterSeconds != 5 {
		t.Errorf("JitterSeconds = %d, want 5", cfg.Polling.JitterSeconds)
	}
	if cfg.API.ListenAddr != ":8080" {
		t.Errorf("API.ListenAddr = %q, want %q", cfg.API.ListenAddr, ":8080")
	}
	if cfg.RedisTTL != 24*time.Hour {
		t.Errorf("RedisTTL = %v, want 24h", cfg.RedisTTL)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CODEBUILD_RUNNER_POLLING_MIN_SLEEP_SECONDS", "10")
	t.Setenv("CODEBUILD_RUNNER_POLLING_MAX_SLEEP_SECONDS", "120")
	t.Setenv("CODEBUILD_RUNNER_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Polling.MinSleepSeconds != 10 {
		t.Errorf("MinSleepSeconds = %d, want 10", cfg.Polling.MinSleepSeconds)
	}
	if cfg.Polling.MaxSleepSeconds != 120 {
		t.Errorf("MaxSleepSeconds = %d, want 120", cfg.Polling.MaxSleepSeconds)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runner.yaml")
	content := []byte("polling:\n  min_sleep_seconds: 4\n  max_sleep_seconds: 30\n  jitter_seconds: 2\nredis_url: redis://localhost:6379/0\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Polling.MinSleepSeconds != 4 || cfg.Polling.MaxSleepSeconds != 30 || cfg.Polling.JitterSeconds != 2 {
		t.Errorf("Polling = %+v, want {4 30 2}", cfg.Polling)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		polling PollingConfig
		secret  string
		wantErr bool
	}{
		{"defaults", PollingConfig{3, 60, 5}, "", false},
		{"zero min", PollingConfig{0, 60, 5}, "", true},
		{"negative jitter", PollingConfig{3, 60, -1}, "", true},
		{"max above eight hours", PollingConfig{3, 28801, 5}, "", true},
		{"max at eight hours", PollingConfig{3, 28800, 5}, "", false},
		{"min above max", PollingConfig{30, 10, 5}, "", true},
		{"short jwt secret", PollingConfig{3, 60, 5}, "short", true},
		{"long jwt secret", PollingConfig{3, 60, 5}, "0123456789abcdef0123456789abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Polling: tt.polling, API: APIConfig{JWTSecret: tt.secret}}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q) error = %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("Chdir(%q) error = %v", old, err)
		}
	})
}
