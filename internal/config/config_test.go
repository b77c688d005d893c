package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
feed:
  base_url: http://localhost:9000/api/v3
  api_key: secret
  coin: ethereum
workers:
  price_period: 15s
  hourly_period: 2m
network:
  ssid: home
  driver: host
  base_backoff: 5s
scheduler:
  heartbeat_cron: "*/30 * * * * *"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.Coin != "ethereum" {
		t.Errorf("coin = %q", cfg.Feed.Coin)
	}
	if cfg.Workers.PricePeriod != 15*time.Second {
		t.Errorf("price_period = %v", cfg.Workers.PricePeriod)
	}
	if cfg.Workers.HourlyPeriod != 2*time.Minute {
		t.Errorf("hourly_period = %v", cfg.Workers.HourlyPeriod)
	}
	if cfg.Workers.DailyPeriod != 15*time.Minute {
		t.Errorf("daily_period default = %v", cfg.Workers.DailyPeriod)
	}
	if cfg.Network.BaseBackoff != 5*time.Second {
		t.Errorf("base_backoff = %v", cfg.Network.BaseBackoff)
	}
	if cfg.Scheduler.HeartbeatCron != "*/30 * * * * *" {
		t.Errorf("heartbeat_cron = %q", cfg.Scheduler.HeartbeatCron)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("COINGECKO_API_KEY", "")
	t.Setenv("WIFI_SSID", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.APIKeyHeader != "x-cg-pro-api-key" {
		t.Errorf("api_key_header = %q", cfg.Feed.APIKeyHeader)
	}
	if cfg.Feed.VsCurrency != "usd" {
		t.Errorf("vs_currency = %q", cfg.Feed.VsCurrency)
	}
	if cfg.Network.JoinAttempts != 3 {
		t.Errorf("join_attempts = %d", cfg.Network.JoinAttempts)
	}
	if cfg.Display.Symbol != "BTC" {
		t.Errorf("symbol = %q", cfg.Display.Symbol)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error without api key and ssid")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COINGECKO_API_KEY", "from-env")
	t.Setenv("WIFI_SSID", "office")
	t.Setenv("WIFI_PASSWORD", "hunter2")
	t.Setenv("HTTP_LISTEN", "127.0.0.1:9999")
	t.Setenv("SQLITE_PATH", "/tmp/diag.db")

	path := writeConfig(t, "feed:\n  api_key: from-file\nnetwork:\n  ssid: home\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.APIKey != "from-env" {
		t.Errorf("api_key = %q", cfg.Feed.APIKey)
	}
	if cfg.Network.SSID != "office" || cfg.Network.Password != "hunter2" {
		t.Errorf("network = %+v", cfg.Network)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9999" {
		t.Errorf("listen = %q", cfg.HTTP.Listen)
	}
	if cfg.Database.SQLitePath != "/tmp/diag.db" {
		t.Errorf("sqlite_path = %q", cfg.Database.SQLitePath)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "feed: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Feed.APIKey = "k"
		cfg.Network.SSID = "home"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing api key", func(c *Config) { c.Feed.APIKey = "" }, true},
		{"missing ssid", func(c *Config) { c.Network.SSID = "" }, true},
		{"bad driver", func(c *Config) { c.Network.Driver = "usb" }, true},
		{"bad base url", func(c *Config) { c.Feed.BaseURL = "not a url" }, true},
		{"negative period", func(c *Config) { c.Workers.PricePeriod = -time.Second }, true},
		{"zero join attempts", func(c *Config) { c.Network.JoinAttempts = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
