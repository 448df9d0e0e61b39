package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "SITE_AUDITOR_CONFIG"
	backendURLEnv   = "SITE_AUDITOR_BACKEND_URL"
	storeDriverEnv  = "SITE_AUDITOR_STORE_DRIVER"
	storePathEnv    = "SITE_AUDITOR_STORE_PATH"
	databaseDSNEnv  = "DATABASE_DSN"
	redisURLEnv     = "REDIS_URL"
	logLevelEnv     = "SITE_AUDITOR_LOG_LEVEL"
	metricsAddrEnv  = "SITE_AUDITOR_METRICS_ADDR"
	defaultStoreKey = "history_by_country"
)

// Config holds high-level settings required across the application.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Storage  StorageConfig  `yaml:"storage"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// BackendConfig points at the analysis service. Both endpoints share BaseURL.
type BackendConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig selects the persistence collaborator.
type StorageConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	RedisURL string `yaml:"redisUrl"`
	Key      string `yaml:"key"`
}

// PlaybackConfig tunes the narration animation.
type PlaybackConfig struct {
	RevealInterval time.Duration `yaml:"revealInterval"`
	LinePause      time.Duration `yaml:"linePause"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file at path (or the one named by SITE_AUDITOR_CONFIG) and applies
// environment overrides. Without a file the defaults are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("config: backend.timeout must not be negative")
	}
	if c.Playback.RevealInterval < 0 || c.Playback.LinePause < 0 {
		return fmt.Errorf("config: playback durations must not be negative")
	}
	if c.Storage.Key == "" {
		return fmt.Errorf("config: storage.key is empty")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(backendURLEnv); v != "" {
		c.Backend.BaseURL = v
	}

	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv(storePathEnv); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Storage.RedisURL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Backend.BaseURL != "" {
		base.Backend.BaseURL = override.Backend.BaseURL
	}
	if override.Backend.Timeout != 0 {
		base.Backend.Timeout = override.Backend.Timeout
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}
	if override.Storage.RedisURL != "" {
		base.Storage.RedisURL = override.Storage.RedisURL
	}
	if override.Storage.Key != "" {
		base.Storage.Key = override.Storage.Key
	}

	if override.Playback.RevealInterval != 0 {
		base.Playback.RevealInterval = override.Playback.RevealInterval
	}
	if override.Playback.LinePause != 0 {
		base.Playback.LinePause = override.Playback.LinePause
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{BaseURL: "http://127.0.0.1:8000"},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "data",
			Key:    defaultStoreKey,
		},
		Playback: PlaybackConfig{
			RevealInterval: 22 * time.Millisecond,
			LinePause:      250 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
