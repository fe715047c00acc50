// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/leverage-engine/internal/engine"
)

var validConfigJSON = `{
    "fee_rate_bps": 10,
    "maintenance_margin_bps": 500,
    "liquidation_reward_bps": 500,
    "min_leverage": 2,
    "max_leverage": 50,
    "keeper_interval_ms": 250,
    "keeper_retries": 5,
    "debug_logging": true,
    "metrics_addr": "127.0.0.1:9100",
    "journal_format": "json"
}`

var validConfigYAML = `
fee_rate_bps: 0
max_leverage: 20
journal_dir: /tmp/journal
`

func setupTestConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "Valid JSON config",
			file:    "config.json",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, engine.DefaultParams(), cfg.Params())
				assert.Equal(t, 250*time.Millisecond, cfg.KeeperInterval())
				assert.Equal(t, 5, cfg.KeeperRetries)
				assert.True(t, cfg.DebugLogging)
				assert.Equal(t, "json", cfg.JournalFormat)
				assert.Equal(t, DefaultEventBuffer, cfg.EventBuffer)
			},
		},
		{
			name:    "YAML with defaults",
			file:    "config.yaml",
			content: validConfigYAML,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, uint64(0), cfg.FeeRateBps)
				assert.Equal(t, uint64(20), cfg.MaxLeverage)
				assert.Equal(t, uint64(500), cfg.MaintenanceMarginBps)
				assert.Equal(t, "/tmp/journal", cfg.JournalDir)
				assert.Equal(t, DefaultJournalFormat, cfg.JournalFormat)
			},
		},
		{
			name:    "Fee consumes margin at max leverage",
			file:    "config.json",
			content: `{"fee_rate_bps": 250, "max_leverage": 50}`,
			wantErr: true,
		},
		{
			name:    "Unknown journal format",
			file:    "config.json",
			content: `{"journal_format": "xml"}`,
			wantErr: true,
		},
		{
			name:    "Invalid JSON syntax",
			file:    "config.json",
			content: "{invalid json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(setupTestConfig(t, tt.file, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid configuration", func(c *Config) {}, false},
		{"Zero fee rate", func(c *Config) { c.FeeRateBps = 0 }, false},
		{"Reward above 100%", func(c *Config) { c.LiquidationRewardBps = 10001 }, true},
		{"Min leverage above max", func(c *Config) { c.MinLeverage = 51 }, true},
		{"Invalid keeper interval", func(c *Config) { c.KeeperIntervalMs = 0 }, true},
		{"Invalid keeper retries", func(c *Config) { c.KeeperRetries = 0 }, true},
		{"Invalid event buffer", func(c *Config) { c.EventBuffer = -1 }, true},
		{"Bad metrics address", func(c *Config) { c.MetricsAddr = "localhost" }, true},
		{"Good metrics address", func(c *Config) { c.MetricsAddr = ":9100" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("LEVERAGE_ENGINE_FEE_RATE_BPS", "0")
	t.Setenv("LEVERAGE_ENGINE_JOURNAL_FORMAT", "json")
	t.Setenv("LEVERAGE_ENGINE_METRICS_ADDR", "0.0.0.0:9200")

	cfg, err := LoadConfig(setupTestConfig(t, "config.json", validConfigJSON))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), cfg.FeeRateBps)
	assert.Equal(t, "json", cfg.JournalFormat)
	assert.Equal(t, "0.0.0.0:9200", cfg.MetricsAddr)
	assert.Equal(t, 250, cfg.KeeperIntervalMs, "file values without env override stay")
}

func BenchmarkLoadConfig(b *testing.B) {
	dir := b.TempDir()
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(validConfigJSON), 0600); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(configPath); err != nil {
			b.Fatal(err)
		}
	}
}
