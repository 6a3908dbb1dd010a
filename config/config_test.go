package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, "14:00-23:00,19:00-04:00", cfg.Trading.Sessions)
	assert.Equal(t, "Asia/Jakarta", cfg.Trading.Timezone)
	assert.Equal(t, 0.01, cfg.Trading.Volume)
	assert.Equal(t, 3, cfg.Risk.MaxLossesPerDay)
	assert.Equal(t, 8, cfg.Filter.SwingLookback)
	assert.NoError(t, cfg.Validate())

	d := cfg.Durations()
	assert.Equal(t, 2*time.Minute, d.MonitorInterval)
	assert.Equal(t, 5*time.Second, d.InitialDelay)
	assert.Equal(t, 48*time.Hour, d.HistoryLookback)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"bad sessions", func(c *Config) { c.Trading.Sessions = "14-23" }, "trading.sessions"},
		{"bad timezone", func(c *Config) { c.Trading.Timezone = "Mars/Olympus" }, "trading.timezone"},
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }, "trading.symbols is required"},
		{"zero volume", func(c *Config) { c.Trading.Volume = 0 }, "trading.volume must be positive"},
		{"bad filter", func(c *Config) { c.Filter.BodyRatio = 2 }, "filter"},
		{"zero losses", func(c *Config) { c.Risk.MaxLossesPerDay = 0 }, "max_losses_per_day"},
		{"volume over max", func(c *Config) { c.Risk.MaxVolume = 0.001 }, "exceeds risk.max_volume"},
		{"unknown broker", func(c *Config) { c.Broker.Mode = "fix" }, "broker.mode"},
		{"mt5 without url", func(c *Config) { c.Broker.Mode = "mt5" }, "base_url"},
		{"bad interval", func(c *Config) { c.Monitor.Interval = "soon" }, "monitor.interval"},
		{"zero interval", func(c *Config) { c.Monitor.Interval = "" }, "monitor.interval must be positive"},
		{"bad journal", func(c *Config) { c.Journal.Type = "sheet" }, "journal.type"},
		{"csv without file", func(c *Config) { c.Journal.Type = "csv" }, "trades_file"},
		{"sqlite without path", func(c *Config) { c.Journal.DBPath = "" }, "db_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := Default()
			cfg.Trading.Symbols = []string{"XAUUSD", "EURUSD"}
			cfg.Broker.Mode = "mt5"
			cfg.Broker.BaseURL = "http://bridge:5000"
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading:\n  symbols: [xauusd, eurusd]\nrisk:\n  max_losses_per_day: 2\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"XAUUSD", "EURUSD"}, cfg.Trading.Symbols)
	assert.Equal(t, 2, cfg.Risk.MaxLossesPerDay)
	assert.Equal(t, "Asia/Jakarta", cfg.Trading.Timezone)
	assert.Equal(t, 1.5, cfg.Filter.RangeMultiplier)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  mode: carrier-pigeon\n"), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TRADING_SESSIONS":            "08:00-12:00",
		"SUPPORTED_PAIRS":             "xauusd, gbpusd ,",
		"TRADE_VOLUME":                "0.05",
		"SWING_LOOKBACK":              "10",
		"SWEEP_ATR_MULTIPLIER":        "2.0",
		"MIN_BODY_RATIO":              "0.6",
		"MAX_LOSSES_PER_DAY":          "4",
		"BROKER_MODE":                 "mt5",
		"BROKER_API_BASE_URL":         "http://bridge",
		"BROKER_API_KEY":              "secret",
		"MONITORING_INTERVAL_MINUTES": "5",
		"ALLOW_M1_FALLBACK":           "false",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "08:00-12:00", cfg.Trading.Sessions)
	assert.Equal(t, []string{"XAUUSD", "GBPUSD"}, cfg.Trading.Symbols)
	assert.Equal(t, 0.05, cfg.Trading.Volume)
	assert.Equal(t, 10, cfg.Filter.SwingLookback)
	assert.Equal(t, 2.0, cfg.Filter.RangeMultiplier)
	assert.Equal(t, 0.6, cfg.Filter.BodyRatio)
	assert.Equal(t, 4, cfg.Risk.MaxLossesPerDay)
	assert.Equal(t, "mt5", cfg.Broker.Mode)
	assert.Equal(t, "secret", cfg.Broker.APIKey)
	assert.Equal(t, "5m", cfg.Monitor.Interval)
	assert.False(t, cfg.Trading.AllowFallback)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvReportsEveryBadValue(t *testing.T) {
	env := map[string]string{
		"TRADE_VOLUME":                "lots",
		"SWING_LOOKBACK":              "eight",
		"MONITORING_INTERVAL_MINUTES": "-1",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	err := Default().ApplyEnv(lookup)
	require.Error(t, err)
	for _, k := range []string{"TRADE_VOLUME", "SWING_LOOKBACK", "MONITORING_INTERVAL_MINUTES"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoadWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TK_TEST_UNUSED=1\n"), 0o644))
	t.Setenv("SUPPORTED_PAIRS", "EURUSD")
	t.Setenv("STATE_DIR", dir)

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD"}, cfg.Trading.Symbols)
	assert.Equal(t, dir, cfg.Storage.Dir)
	assert.Equal(t, "1", os.Getenv("TK_TEST_UNUSED"))
}
