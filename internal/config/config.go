// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/leverage-engine/internal/engine"
)

type Config struct {
	FeeRateBps           uint64 `mapstructure:"fee_rate_bps"`
	MaintenanceMarginBps uint64 `mapstructure:"maintenance_margin_bps"`
	LiquidationRewardBps uint64 `mapstructure:"liquidation_reward_bps"`
	MinLeverage          uint64 `mapstructure:"min_leverage"`
	MaxLeverage          uint64 `mapstructure:"max_leverage"`
	KeeperIntervalMs     int    `mapstructure:"keeper_interval_ms"`
	KeeperRetries        int    `mapstructure:"keeper_retries"`
	EventBuffer          int    `mapstructure:"event_buffer"`
	DebugLogging         bool   `mapstructure:"debug_logging"`
	LogFile              string `mapstructure:"log_file"`
	MetricsAddr          string `mapstructure:"metrics_addr"`
	JournalDir           string `mapstructure:"journal_dir"`
	JournalFormat        string `mapstructure:"journal_format"`
}

const (
	DefaultKeeperIntervalMs = 1000
	DefaultKeeperRetries    = 3
	DefaultEventBuffer      = 256
	DefaultLogFile          = "logs/engine.log"
	DefaultJournalDir       = "journal"
	DefaultJournalFormat    = "csv"

	envPrefix = "LEVERAGE_ENGINE"
)

var journalFormats = map[string]bool{"csv": true, "json": true}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := engine.DefaultParams()
	return &Config{
		FeeRateBps:           p.FeeRateBps,
		MaintenanceMarginBps: p.MaintenanceMarginBps,
		LiquidationRewardBps: p.LiquidationRewardBps,
		MinLeverage:          p.MinLeverage,
		MaxLeverage:          p.MaxLeverage,
		KeeperIntervalMs:     DefaultKeeperIntervalMs,
		KeeperRetries:        DefaultKeeperRetries,
		EventBuffer:          DefaultEventBuffer,
		LogFile:              DefaultLogFile,
		JournalDir:           DefaultJournalDir,
		JournalFormat:        DefaultJournalFormat,
	}
}

// LoadConfig reads path (JSON or YAML), applies defaults and
// LEVERAGE_ENGINE_* environment overrides, then validates. An empty path
// loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	d := Default()
	defaults := map[string]interface{}{
		"fee_rate_bps":           d.FeeRateBps,
		"maintenance_margin_bps": d.MaintenanceMarginBps,
		"liquidation_reward_bps": d.LiquidationRewardBps,
		"min_leverage":           d.MinLeverage,
		"max_leverage":           d.MaxLeverage,
		"keeper_interval_ms":     d.KeeperIntervalMs,
		"keeper_retries":         d.KeeperRetries,
		"event_buffer":           d.EventBuffer,
		"debug_logging":          false,
		"log_file":               d.LogFile,
		"metrics_addr":           "",
		"journal_dir":            d.JournalDir,
		"journal_format":         d.JournalFormat,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	loadEnvironmentVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.JournalFormat = strings.ToLower(strings.TrimSpace(cfg.JournalFormat))

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if err := cfg.Params().Validate(); err != nil {
		return fmt.Errorf("invalid risk parameters: %w", err)
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if !journalFormats[cfg.JournalFormat] {
		return fmt.Errorf("unknown journal_format %q", cfg.JournalFormat)
	}
	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return errors.New("metrics_addr must be host:port")
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.KeeperIntervalMs <= 0 {
		return errors.New("invalid keeper_interval_ms")
	}
	if cfg.KeeperRetries < 1 {
		return errors.New("invalid keeper_retries")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Params converts the risk section to engine parameters.
func (c *Config) Params() engine.Params {
	return engine.Params{
		FeeRateBps:           c.FeeRateBps,
		MaintenanceMarginBps: c.MaintenanceMarginBps,
		LiquidationRewardBps: c.LiquidationRewardBps,
		MinLeverage:          c.MinLeverage,
		MaxLeverage:          c.MaxLeverage,
	}
}

// KeeperInterval returns the keeper tick as a duration.
func (c *Config) KeeperInterval() time.Duration {
	return time.Duration(c.KeeperIntervalMs) * time.Millisecond
}
