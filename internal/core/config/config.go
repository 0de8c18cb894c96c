package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Stories   StoriesConfig   `koanf:"stories"`
	Analytics AnalyticsConfig `koanf:"analytics"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type StoriesConfig struct {
	SourceType string `koanf:"source_type"`
	Path       string `koanf:"path"`
}

type AnalyticsConfig struct {
	TrendThreshold   float64 `koanf:"trend_threshold"`
	SnapshotInterval string  `koanf:"snapshot_interval"`
}

func (c AnalyticsConfig) EffectiveSnapshotInterval() string {
	if c.SnapshotInterval != "" {
		return c.SnapshotInterval
	}
	return "24h"
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if c.Stories.SourceType != "filesystem" {
		return fmt.Errorf("unsupported stories.source_type %q", c.Stories.SourceType)
	}
	if strings.TrimSpace(c.Stories.Path) == "" {
		return fmt.Errorf("stories.path is required")
	}

	if c.Analytics.TrendThreshold <= 0 {
		return fmt.Errorf("analytics.trend_threshold must be > 0")
	}
	interval, err := time.ParseDuration(c.Analytics.EffectiveSnapshotInterval())
	if err != nil {
		return fmt.Errorf("invalid analytics.snapshot_interval %q: %w", c.Analytics.EffectiveSnapshotInterval(), err)
	}
	if interval <= 0 {
		return fmt.Errorf("analytics.snapshot_interval must be > 0")
	}

	return nil
}

// Load parses config from defaults, an optional YAML file, then env vars, and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"server.max_body_size_mb":     1,
		"server.mode":                 "release",
		"database.type":               "postgres",
		"database.dsn":                "postgres://localhost:5432/storypulse?sslmode=disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     25,
		"database.auto_migrate":       true,
		"stories.source_type":         "filesystem",
		"stories.path":                "./stories",
		"analytics.trend_threshold":   0.10,
		"analytics.snapshot_interval": "24h",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("STORYPULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STORYPULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
