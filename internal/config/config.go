package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Feed struct {
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		APIKeyHeader string        `yaml:"api_key_header"`
		Timeout      time.Duration `yaml:"timeout"`
		Coin         string        `yaml:"coin"`
		VsCurrency   string        `yaml:"vs_currency"`
	} `yaml:"feed"`
	Workers struct {
		PricePeriod  time.Duration `yaml:"price_period"`
		HourlyPeriod time.Duration `yaml:"hourly_period"`
		DailyPeriod  time.Duration `yaml:"daily_period"`
	} `yaml:"workers"`
	Network struct {
		SSID         string        `yaml:"ssid"`
		Password     string        `yaml:"password"`
		Driver       string        `yaml:"driver"`
		BaseBackoff  time.Duration `yaml:"base_backoff"`
		JoinAttempts int           `yaml:"join_attempts"`
		JoinUnit     time.Duration `yaml:"join_unit"`
	} `yaml:"network"`
	Scheduler struct {
		Tick          time.Duration `yaml:"tick"`
		LinkCheck     time.Duration `yaml:"link_check"`
		ExclusiveWait time.Duration `yaml:"exclusive_wait"`
		LockWait      time.Duration `yaml:"lock_wait"`
		HeartbeatCron string        `yaml:"heartbeat_cron"`
	} `yaml:"scheduler"`
	Display struct {
		Symbol   string        `yaml:"symbol"`
		FreshTTL time.Duration `yaml:"fresh_ttl"`
	} `yaml:"display"`
	Database struct {
		SQLitePath     string `yaml:"sqlite_path"`
		DiagnosticsMax int    `yaml:"diagnostics_max"`
	} `yaml:"database"`
	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`
	Firmware struct {
		StagingDir string `yaml:"staging_dir"`
	} `yaml:"firmware"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults fill the gaps.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Feed.APIKey = v
	}
	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("WIFI_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("WIFI_PASSWORD"); v != "" {
		cfg.Network.Password = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		cfg.HTTP.Listen = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://pro-api.coingecko.com/api/v3"
	}
	if c.Feed.APIKeyHeader == "" {
		c.Feed.APIKeyHeader = "x-cg-pro-api-key"
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 10 * time.Second
	}
	if c.Feed.Coin == "" {
		c.Feed.Coin = "bitcoin"
	}
	if c.Feed.VsCurrency == "" {
		c.Feed.VsCurrency = "usd"
	}
	if c.Workers.PricePeriod == 0 {
		c.Workers.PricePeriod = 30 * time.Second
	}
	if c.Workers.HourlyPeriod == 0 {
		c.Workers.HourlyPeriod = 5 * time.Minute
	}
	if c.Workers.DailyPeriod == 0 {
		c.Workers.DailyPeriod = 15 * time.Minute
	}
	if c.Network.Driver == "" {
		c.Network.Driver = "sim"
	}
	if c.Network.BaseBackoff == 0 {
		c.Network.BaseBackoff = 10 * time.Second
	}
	if c.Network.JoinAttempts == 0 {
		c.Network.JoinAttempts = 3
	}
	if c.Network.JoinUnit == 0 {
		c.Network.JoinUnit = time.Second
	}
	if c.Scheduler.Tick == 0 {
		c.Scheduler.Tick = 50 * time.Millisecond
	}
	if c.Scheduler.LinkCheck == 0 {
		c.Scheduler.LinkCheck = time.Second
	}
	if c.Scheduler.ExclusiveWait == 0 {
		c.Scheduler.ExclusiveWait = 15 * time.Second
	}
	if c.Scheduler.LockWait == 0 {
		c.Scheduler.LockWait = 2 * time.Second
	}
	if c.Scheduler.HeartbeatCron == "" {
		c.Scheduler.HeartbeatCron = "0 * * * * *"
	}
	if c.Display.Symbol == "" {
		c.Display.Symbol = "BTC"
	}
	if c.Display.FreshTTL == 0 {
		c.Display.FreshTTL = 5 * time.Minute
	}
	if c.Database.DiagnosticsMax == 0 {
		c.Database.DiagnosticsMax = 500
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Firmware.StagingDir == "" {
		c.Firmware.StagingDir = "data/firmware"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Feed.APIKey == "" {
		return fmt.Errorf("feed.api_key is required")
	}
	if _, err := url.ParseRequestURI(c.Feed.BaseURL); err != nil {
		return fmt.Errorf("feed.base_url: %w", err)
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}
	if c.Network.SSID == "" {
		return fmt.Errorf("network.ssid is required")
	}
	switch c.Network.Driver {
	case "sim", "host":
	default:
		return fmt.Errorf("network.driver must be sim or host, got %q", c.Network.Driver)
	}
	if c.Network.JoinAttempts < 1 {
		return fmt.Errorf("network.join_attempts must be positive")
	}
	for name, d := range map[string]time.Duration{
		"workers.price_period":     c.Workers.PricePeriod,
		"workers.hourly_period":    c.Workers.HourlyPeriod,
		"workers.daily_period":     c.Workers.DailyPeriod,
		"network.base_backoff":     c.Network.BaseBackoff,
		"scheduler.tick":           c.Scheduler.Tick,
		"scheduler.lock_wait":      c.Scheduler.LockWait,
		"scheduler.exclusive_wait": c.Scheduler.ExclusiveWait,
		"feed.timeout":             c.Feed.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
