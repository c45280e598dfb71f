package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Trading.StartingBalance != 10000 {
		t.Errorf("starting balance = %v, want 10000", cfg.Trading.StartingBalance)
	}
	if cfg.Trading.FeeRate != 0.001 {
		t.Errorf("fee rate = %v, want 0.001", cfg.Trading.FeeRate)
	}
	if cfg.Engine.TriggerInterval != 30*time.Second {
		t.Errorf("trigger interval = %v, want 30s", cfg.Engine.TriggerInterval)
	}
	if cfg.Engine.AlertInterval != 60*time.Second {
		t.Errorf("alert interval = %v, want 60s", cfg.Engine.AlertInterval)
	}
	if cfg.Feed.Mode != "sim" {
		t.Errorf("feed mode = %q, want sim", cfg.Feed.Mode)
	}
	if !cfg.Notifications.Enabled {
		t.Error("notifications should default to enabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[trading]
starting_balance = 50000.0
fee_rate = 0.002
quote_currency = "EUR"

[engine]
trigger_interval = "5s"

[feed]
mode = "http"
base_url = "https://example.test/api"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Trading.StartingBalance != 50000 {
		t.Errorf("starting balance = %v, want 50000", cfg.Trading.StartingBalance)
	}
	if cfg.Trading.QuoteCurrency != "EUR" {
		t.Errorf("quote currency = %q, want EUR", cfg.Trading.QuoteCurrency)
	}
	if cfg.Engine.TriggerInterval != 5*time.Second {
		t.Errorf("trigger interval = %v, want 5s", cfg.Engine.TriggerInterval)
	}
	if cfg.Feed.BaseURL != "https://example.test/api" {
		t.Errorf("base url = %q, want override", cfg.Feed.BaseURL)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.AlertInterval != 60*time.Second {
		t.Errorf("alert interval = %v, want default 60s", cfg.Engine.AlertInterval)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Trading: TradingConfig{StartingBalance: 10000, FeeRate: 0.001},
			Engine:  EngineConfig{TriggerInterval: 30 * time.Second, AlertInterval: time.Minute},
			Feed:    FeedConfig{Mode: "sim"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero starting balance", func(c *Config) { c.Trading.StartingBalance = 0 }},
		{"negative fee rate", func(c *Config) { c.Trading.FeeRate = -0.1 }},
		{"fee rate of one", func(c *Config) { c.Trading.FeeRate = 1 }},
		{"zero trigger interval", func(c *Config) { c.Engine.TriggerInterval = 0 }},
		{"zero alert interval", func(c *Config) { c.Engine.AlertInterval = 0 }},
		{"bad feed mode", func(c *Config) { c.Feed.Mode = "replay" }},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
