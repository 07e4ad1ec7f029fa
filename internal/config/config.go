// Package config loads daemon configuration from a YAML file and
// NEXTDUE_* environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the daemon.
type Config struct {
	RedisAddr     string
	RedisDB       int
	StoreDSN      string
	ConsumeStream string
	PublishStream string

	Concurrency        int
	VisibilityTTL      time.Duration
	RunTimeout         time.Duration
	SucceededRetention time.Duration

	BackoffMaxAttempts int
	BackoffBaseDelay   time.Duration
	BackoffMultiplier  float64
	BackoffMaxDelay    time.Duration

	ReportInterval time.Duration
}

// Load reads nextdue.yaml from the given directory (or the working
// directory when empty). A missing file is not an error; defaults and
// environment overrides still apply.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("nextdue")
	v.SetConfigType("yaml")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetEnvPrefix("NEXTDUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.dsn", "nextdue.db")
	v.SetDefault("streams.consume", "task-completions")
	v.SetDefault("streams.publish", "task-events")
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.visibility_ttl", "1m")
	v.SetDefault("engine.run_timeout", "30s")
	v.SetDefault("engine.succeeded_retention", "1h")
	v.SetDefault("backoff.max_attempts", 5)
	v.SetDefault("backoff.base_delay", "1s")
	v.SetDefault("backoff.multiplier", 2.0)
	v.SetDefault("backoff.max_delay", "2m")
	v.SetDefault("report.interval", "1m")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading nextdue.yaml: %w", err)
		}
	}

	cfg := Config{
		RedisAddr:          v.GetString("redis.addr"),
		RedisDB:            v.GetInt("redis.db"),
		StoreDSN:           v.GetString("store.dsn"),
		ConsumeStream:      v.GetString("streams.consume"),
		PublishStream:      v.GetString("streams.publish"),
		Concurrency:        v.GetInt("engine.concurrency"),
		VisibilityTTL:      v.GetDuration("engine.visibility_ttl"),
		RunTimeout:         v.GetDuration("engine.run_timeout"),
		SucceededRetention: v.GetDuration("engine.succeeded_retention"),
		BackoffMaxAttempts: v.GetInt("backoff.max_attempts"),
		BackoffBaseDelay:   v.GetDuration("backoff.base_delay"),
		BackoffMultiplier:  v.GetFloat64("backoff.multiplier"),
		BackoffMaxDelay:    v.GetDuration("backoff.max_delay"),
		ReportInterval:     v.GetDuration("report.interval"),
	}

	if cfg.ConsumeStream == cfg.PublishStream {
		return Config{}, fmt.Errorf("consume and publish streams must differ, both are %q", cfg.ConsumeStream)
	}
	if cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("engine.concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if cfg.BackoffMaxAttempts < 1 {
		return Config{}, fmt.Errorf("backoff.max_attempts must be >= 1, got %d", cfg.BackoffMaxAttempts)
	}

	return cfg, nil
}
