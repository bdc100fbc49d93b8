// Package config provides configuration loading and validation for the cull
// daemon. Supports YAML files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a cull reaper process.
type Config struct {
	Reaper        ReaperConfig        `yaml:"reaper"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Storage       StorageConfig       `yaml:"storage"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ReaperConfig struct {
	// RSEs is the list of storage sites this process reaps.
	RSEs []string `yaml:"rses" env:"CULL_RSES"`

	EnableImmediateCleanup bool  `yaml:"enableImmediateCleanup" env:"CULL_IMMEDIATE_CLEANUP"`
	DBBatchSize            int   `yaml:"dbBatchSize" env:"CULL_DB_BATCH_SIZE"`
	RefreshTriggerRatio    int   `yaml:"refreshTriggerRatio" env:"CULL_REFRESH_TRIGGER_RATIO"`
	DelaySeconds           int64 `yaml:"delaySeconds" env:"CULL_DELAY_SECONDS"`
	ChunkSize              int   `yaml:"chunkSize" env:"CULL_CHUNK_SIZE"`

	// LoopIntervalMs is the pause between reap passes when a pass finds
	// nothing eligible.
	LoopIntervalMs int64 `yaml:"loopIntervalMs" env:"CULL_LOOP_INTERVAL_MS"`
}

type CatalogConfig struct {
	// DSN is the go-sql-driver/mysql data source name; parseTime=true is
	// required.
	DSN          string `yaml:"dsn" env:"CULL_CATALOG_DSN"`
	Table        string `yaml:"table" env:"CULL_CATALOG_TABLE"`
	MaxOpenConns int    `yaml:"maxOpenConns" env:"CULL_CATALOG_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" env:"CULL_CATALOG_MAX_IDLE_CONNS"`
}

type StorageConfig struct {
	Endpoint     string `yaml:"endpoint" env:"CULL_S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"CULL_S3_BUCKET"`
	Region       string `yaml:"region" env:"CULL_S3_REGION"`
	AccessKey    string `yaml:"accessKey" env:"CULL_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"CULL_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"CULL_S3_PATH_STYLE"`
}

type EventsConfig struct {
	Enabled bool     `yaml:"enabled" env:"CULL_EVENTS_ENABLED"`
	Brokers []string `yaml:"brokers" env:"CULL_EVENTS_BROKERS"`
	Topic   string   `yaml:"topic" env:"CULL_EVENTS_TOPIC"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"CULL_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"CULL_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"CULL_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Reaper: ReaperConfig{
			EnableImmediateCleanup: false,
			DBBatchSize:            50,
			RefreshTriggerRatio:    80,
			DelaySeconds:           600,
			ChunkSize:              100,
			LoopIntervalMs:         30000,
		},
		Catalog: CatalogConfig{
			Table:        "replicas",
			MaxOpenConns: 8,
			MaxIdleConns: 2,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
		},
		Events: EventsConfig{
			Topic: "reaper-events",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load builds a Config from defaults and environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults, then applies environment
// overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Reaper.ChunkSize <= 0 {
		return fmt.Errorf("config: reaper.chunkSize must be positive, got %d", c.Reaper.ChunkSize)
	}
	if c.Reaper.DBBatchSize <= 0 {
		return fmt.Errorf("config: reaper.dbBatchSize must be positive, got %d", c.Reaper.DBBatchSize)
	}
	if c.Reaper.RefreshTriggerRatio <= 0 || c.Reaper.RefreshTriggerRatio > 100 {
		return fmt.Errorf("config: reaper.refreshTriggerRatio must be in (0, 100], got %d", c.Reaper.RefreshTriggerRatio)
	}
	if c.Reaper.DelaySeconds <= 0 {
		return fmt.Errorf("config: reaper.delaySeconds must be positive, got %d", c.Reaper.DelaySeconds)
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("config: events.brokers is required when events are enabled")
	}
	return nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setInt64 := func(dst *int64, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setList := func(dst *[]string, key string) {
		if v := os.Getenv(key); v != "" {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	setList(&c.Reaper.RSEs, "CULL_RSES")
	setBool(&c.Reaper.EnableImmediateCleanup, "CULL_IMMEDIATE_CLEANUP")
	setInt(&c.Reaper.DBBatchSize, "CULL_DB_BATCH_SIZE")
	setInt(&c.Reaper.RefreshTriggerRatio, "CULL_REFRESH_TRIGGER_RATIO")
	setInt64(&c.Reaper.DelaySeconds, "CULL_DELAY_SECONDS")
	setInt(&c.Reaper.ChunkSize, "CULL_CHUNK_SIZE")
	setInt64(&c.Reaper.LoopIntervalMs, "CULL_LOOP_INTERVAL_MS")

	setString(&c.Catalog.DSN, "CULL_CATALOG_DSN")
	setString(&c.Catalog.Table, "CULL_CATALOG_TABLE")
	setInt(&c.Catalog.MaxOpenConns, "CULL_CATALOG_MAX_OPEN_CONNS")
	setInt(&c.Catalog.MaxIdleConns, "CULL_CATALOG_MAX_IDLE_CONNS")

	setString(&c.Storage.Endpoint, "CULL_S3_ENDPOINT")
	setString(&c.Storage.Bucket, "CULL_S3_BUCKET")
	setString(&c.Storage.Region, "CULL_S3_REGION")
	setString(&c.Storage.AccessKey, "CULL_S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "CULL_S3_SECRET_KEY")
	setBool(&c.Storage.UsePathStyle, "CULL_S3_PATH_STYLE")

	setBool(&c.Events.Enabled, "CULL_EVENTS_ENABLED")
	setList(&c.Events.Brokers, "CULL_EVENTS_BROKERS")
	setString(&c.Events.Topic, "CULL_EVENTS_TOPIC")

	setString(&c.Observability.MetricsAddr, "CULL_METRICS_ADDR")
	setString(&c.Observability.LogLevel, "CULL_LOG_LEVEL")
	setString(&c.Observability.LogFormat, "CULL_LOG_FORMAT")
}
