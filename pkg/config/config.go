// Package config provides file- and environment-based configuration for the runner.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/narvanalabs/codebuild-runner/internal/validation"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "CODEBUILD_RUNNER"

// envKeyReplacer maps nested keys such as polling.min_sleep_seconds to
// CODEBUILD_RUNNER_POLLING_MIN_SLEEP_SECONDS.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds all runner-level configuration. Per-invocation build settings
// live in job files, not here.
type Config struct {
	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Polling configuration shared by every invocation.
	Polling PollingConfig `mapstructure:"polling"`

	// Database configuration for report persistence. Empty disables it.
	DatabaseDSN string `mapstructure:"database_url"`

	// Redis configuration for the live report cache. Empty disables it.
	RedisURL string        `mapstructure:"redis_url"`
	RedisTTL time.Duration `mapstructure:"redis_ttl"`

	// Report API server configuration
	API APIConfig `mapstructure:"api"`

	// Tracing toggles the stdout trace exporter.
	Tracing bool `mapstructure:"tracing"`

	// AgeIdentity decrypts age-encrypted secret keys in job files.
	// Format: AGE-SECRET-KEY-1... (Bech32 encoded)
	AgeIdentity string `mapstructure:"age_identity"`

	// ShutdownTimeout bounds graceful shutdown of the API server.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PollingConfig holds the backoff bounds in whole seconds.
type PollingConfig struct {
	MinSleepSeconds int `mapstructure:"min_sleep_seconds"`
	MaxSleepSeconds int `mapstructure:"max_sleep_seconds"`
	JitterSeconds   int `mapstructure:"jitter_seconds"`
}

// APIConfig holds report API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	JWTSecret  string `mapstructure:"jwt_secret"`
}

// Load reads configuration from defaults, an optional runner config file and
// environment variables. configFile may be empty, in which case runner.yaml
// is looked up in the working directory and /etc/codebuild-runner.
func Load(configFile string) (*Config, error) {
	v := newViper()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("runner")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/codebuild-runner")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	p := c.Polling
	if msg := validation.CheckPollingBounds(p.MinSleepSeconds, p.MaxSleepSeconds, p.JitterSeconds); msg != "" {
		return fmt.Errorf("polling: %s", strings.ToLower(msg))
	}
	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < 32 {
		return fmt.Errorf("api.jwt_secret must be at least 32 characters")
	}
	return nil
}

// LoadWithDefaults loads configuration from defaults and environment only.
// It does not validate, useful for testing.
func LoadWithDefaults() *Config {
	v := newViper()
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("polling.min_sleep_seconds", 3)
	v.SetDefault("polling.max_sleep_seconds", 60)
	v.SetDefault("polling.jitter_seconds", 5)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_ttl", 24*time.Hour)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("tracing", false)
	v.SetDefault("age_identity", "")
	v.SetDefault("shutdown_timeout", 30*time.Second)

	return v
}
