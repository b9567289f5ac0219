package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall daemon configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Station    StationConfig    `yaml:"station"`
	Hub        HubConfig        `yaml:"hub"`
	Rules      RulesConfig      `yaml:"rules"`
	GPIO       GPIOConfig       `yaml:"gpio"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the local HTTP surface configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" env:"SERVER_PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// StationConfig identifies the station and tunes its watchdogs.
type StationConfig struct {
	ID                     string      `yaml:"id" env:"STATION_ID"`
	Key                    string      `yaml:"key" env:"STATION_KEY"`
	ResetIntervalSeconds   int         `yaml:"reset_interval_seconds"`
	PreGameTimeoutSeconds  int         `yaml:"pre_game_timeout_seconds"`
	PostGameTimeoutSeconds int         `yaml:"post_game_timeout_seconds"`
	SettleDelayMs          int         `yaml:"settle_delay_ms"`
	HubCallTimeoutSeconds  int         `yaml:"hub_call_timeout_seconds"`
	ActivationRetry        RetryConfig `yaml:"activation_retry"`
	Console                bool        `yaml:"console" env:"STATION_CONSOLE"`
}

// RetryConfig bounds re-activation after the hub refuses the station.
type RetryConfig struct {
	BaseDelaySeconds int  `yaml:"base_delay_seconds"`
	MaxDelaySeconds  int  `yaml:"max_delay_seconds"`
	MaxRetries       *int `yaml:"max_retries"` // nil means DefaultMaxRetries; 0 disables retries
}

// DefaultMaxRetries applies when max_retries is absent.
const DefaultMaxRetries = 5

// Retries returns the configured retry bound.
func (r RetryConfig) Retries() int {
	if r.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *r.MaxRetries
}

// HubConfig holds the hub REST client configuration.
type HubConfig struct {
	URL            string  `yaml:"url" env:"HUB_URL"`
	HTTPProxy      string  `yaml:"http_proxy" env:"HUB_HTTP_PROXY"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
}

// RulesConfig selects the ruleset.
type RulesConfig struct {
	Name  string      `yaml:"name" env:"RULES_NAME"`
	Tally TallyConfig `yaml:"tally"`
}

// TallyConfig tunes the tally ruleset.
type TallyConfig struct {
	AuthenticationTimeoutSec int `yaml:"authentication_timeout_sec"`
	HeartbeatIntervalMs      int `yaml:"heartbeat_interval_ms"`
	TargetScore              int `yaml:"target_score"`
	DemoTargetScore          int `yaml:"demo_target_score"`
	PulseMs                  int `yaml:"pulse_ms"`
}

// GPIOConfig selects the pin driver.
type GPIOConfig struct {
	Simulate bool   `yaml:"simulate" env:"GPIO_SIMULATE"`
	Chip     string `yaml:"chip" env:"GPIO_CHIP"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN                    string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for operator web push alerts.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads the configuration from path, applies defaults and then overlays environment
// variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Station.ID == "" {
		return nil, fmt.Errorf("station.id (or STATION_ID) is required")
	}
	if cfg.Hub.URL == "" {
		return nil, fmt.Errorf("hub.url (or HUB_URL) is required")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 5
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 5
	}
	if c.Hub.TimeoutSeconds <= 0 {
		c.Hub.TimeoutSeconds = 10
	}
	if c.Rules.Name == "" {
		c.Rules.Name = "tally"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "stationd.db"
	}
	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}
	if c.WorkerPool.Size <= 0 {
		c.WorkerPool.Size = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Seconds converts a positive count of seconds; zero or negative yields zero so callers
// fall back to their own defaults.
func Seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Millis converts a positive count of milliseconds, like Seconds.
func Millis(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
