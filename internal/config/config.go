// Package config provides configuration management for the trading simulator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading       TradingConfig      `mapstructure:"trading"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Feed          FeedConfig         `mapstructure:"feed"`
	Store         StoreConfig        `mapstructure:"store"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Log           LogConfig          `mapstructure:"log"`
}

// TradingConfig holds wallet and fee configuration.
type TradingConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	FeeRate         float64 `mapstructure:"fee_rate"`
	QuoteCurrency   string  `mapstructure:"quote_currency"`
}

// EngineConfig holds evaluator scheduling configuration.
type EngineConfig struct {
	TriggerInterval time.Duration `mapstructure:"trigger_interval"`
	AlertInterval   time.Duration `mapstructure:"alert_interval"`
}

// FeedConfig holds price feed configuration.
type FeedConfig struct {
	Mode       string        `mapstructure:"mode"` // "http", "sim"
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cryptosim"
	}
	return filepath.Join(home, ".config", "cryptosim")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	v.SetEnvPrefix("CRYPTOSIM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// Missing file is fine: defaults plus env are a complete config.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.starting_balance", 10000.0)
	v.SetDefault("trading.fee_rate", 0.001)
	v.SetDefault("trading.quote_currency", "USD")

	v.SetDefault("engine.trigger_interval", 30*time.Second)
	v.SetDefault("engine.alert_interval", 60*time.Second)

	v.SetDefault("feed.mode", "sim")
	v.SetDefault("feed.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("feed.timeout", 10*time.Second)
	v.SetDefault("feed.max_retries", 3)

	v.SetDefault("store.db_path", filepath.Join(DefaultConfigDir(), "cryptosim.db"))

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.webhook.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.path", filepath.Join(DefaultConfigDir(), "logs", "cryptosim.log"))
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Trading.StartingBalance <= 0 {
		return fmt.Errorf("trading.starting_balance must be positive, got %v", c.Trading.StartingBalance)
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return fmt.Errorf("trading.fee_rate must be in [0,1), got %v", c.Trading.FeeRate)
	}
	if c.Engine.TriggerInterval <= 0 {
		return fmt.Errorf("engine.trigger_interval must be positive, got %v", c.Engine.TriggerInterval)
	}
	if c.Engine.AlertInterval <= 0 {
		return fmt.Errorf("engine.alert_interval must be positive, got %v", c.Engine.AlertInterval)
	}
	if c.Feed.Mode != "http" && c.Feed.Mode != "sim" {
		return fmt.Errorf("feed.mode must be \"http\" or \"sim\", got %q", c.Feed.Mode)
	}
	return nil
}
