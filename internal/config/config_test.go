package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
)

func TestLoad_CreatesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, statErr, "template should be written")

	assert.Equal(t, DriverSQLite, cfg.Data.Driver)
	assert.Equal(t, filepath.Join(dir, "archive.db"), cfg.Data.SQLitePath)
	assert.Equal(t, 1, cfg.Engine.ExpiryToleranceDays)
	assert.Equal(t, IntrinsicZeroClose, cfg.Engine.IntrinsicOnExpiry)
	assert.Equal(t, models.MarketSpec{LotSize: 75, TickSize: 50}, cfg.Markets["NIFTY"])
	assert.Equal(t, 100.0, cfg.TickSizes()["BANKNIFTY"])
}

func TestLoad_ReadsTemplateBack(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.NoError(t, err)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.LotSizes()["BANKNIFTY"])
	assert.Equal(t, 0, cfg.Engine.Workers)
}

func TestLoad_FileOverridesAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
[data]
driver = "csv"
csv_dir = "/data/bhav"

[engine]
expiry_tolerance_days = 2
intrinsic_on_expiry = "ALWAYS"

[markets.MIDCPNIFTY]
lot_size = 120
tick_size = 25.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	t.Setenv("BACKTESTER_WORKERS", "3")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DriverCSV, cfg.Data.Driver)
	assert.Equal(t, "/data/bhav", cfg.Data.CSVDir)
	assert.Equal(t, 2, cfg.Engine.ExpiryToleranceDays)
	assert.Equal(t, IntrinsicAlways, cfg.Engine.IntrinsicOnExpiry)
	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.Equal(t, models.MarketSpec{LotSize: 120, TickSize: 25}, cfg.Markets["MIDCPNIFTY"])
	assert.Equal(t, 75, cfg.Markets["NIFTY"].LotSize, "defaults survive partial market tables")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Data.Driver = "mysql" }, false},
		{"postgres without dsn", func(c *Config) { c.Data.Driver = DriverPostgres }, false},
		{"tolerance too wide", func(c *Config) { c.Engine.ExpiryToleranceDays = 10 }, false},
		{"unknown intrinsic mode", func(c *Config) { c.Engine.IntrinsicOnExpiry = "sometimes" }, false},
		{"zero lot size", func(c *Config) { c.Markets["NIFTY"] = models.MarketSpec{TickSize: 50} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
