package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // Africa/Cairo on hosts without zoneinfo

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath  = "configs/config.yaml"
	defaultDBPath      = "data/zeinbus.db"
	defaultTimezone    = "Africa/Cairo"
	defaultDestination = "جامعة الجلالة"
	defaultRefreshSpec = "@every 5m"
)

// BackupConfig controls periodic copies of the local database.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Backend struct {
		GraphQLURL      string  `yaml:"graphql_url"`
		APIToken        string  `yaml:"api_token"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	} `yaml:"backend"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`

		// NotifyIntervalSeconds is how often backend notifications are pushed
		// to logged-in chats. Negative disables the relay.
		NotifyIntervalSeconds int `yaml:"notify_interval_seconds"`
	} `yaml:"telegram"`

	API struct {
		Enabled        bool     `yaml:"enabled"`
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		Timezone            string `yaml:"timezone"`
		DefaultDestination  string `yaml:"default_destination"`
		SnapshotRefreshCron string `yaml:"snapshot_refresh_cron"`
		FaresPath           string `yaml:"fares_path"`
	} `yaml:"booking"`
}

// Load reads the YAML config at path, expanding ${ENV} placeholders and
// filling defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath
	}
	if c.Backup.Path == "" {
		c.Backup.Path = filepath.Join(filepath.Dir(c.Database.Path), "backups")
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 10
	}
	if c.Backend.Burst <= 0 {
		c.Backend.Burst = 1
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = defaultTimezone
	}
	if c.Booking.DefaultDestination == "" {
		c.Booking.DefaultDestination = defaultDestination
	}
	if c.Booking.SnapshotRefreshCron == "" {
		c.Booking.SnapshotRefreshCron = defaultRefreshSpec
	}
	if c.Telegram.NotifyIntervalSeconds == 0 {
		c.Telegram.NotifyIntervalSeconds = 300
	}
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Backend.GraphQLURL == "" {
		return fmt.Errorf("backend.graphql_url is required")
	}
	if c.Backend.RatePerSecond < 0 {
		return fmt.Errorf("backend.rate_per_second cannot be negative")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port: invalid port %d", c.API.Port)
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	return nil
}

// BackendTimeout is the per-request timeout of backend calls.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// CacheTTL is how long read queries stay cached in Redis. Zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	if c.Backend.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Backend.CacheTTLSeconds) * time.Second
}

// NotifyInterval is the notification relay period, zero when disabled.
func (c *Config) NotifyInterval() time.Duration {
	if c.Telegram.NotifyIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Telegram.NotifyIntervalSeconds) * time.Second
}

// Location is the operator's timezone, used for calendar days and the cutoff.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
