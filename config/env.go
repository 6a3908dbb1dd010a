package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load builds the effective configuration: defaults, then the file at path
// when path is not empty, then .env and process environment overrides.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads the given env files, or ./.env when none are given,
// without overriding variables already set. A missing file is ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. Every malformed
// value is reported.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs error
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	setString("TRADING_SESSIONS", &c.Trading.Sessions)
	setString("TRADING_TIMEZONE", &c.Trading.Timezone)
	if v, ok := get("SUPPORTED_PAIRS"); ok {
		c.Trading.Symbols = splitSymbols(v)
	}
	setFloat("TRADE_VOLUME", &c.Trading.Volume)
	if v, ok := get("ALLOW_M1_FALLBACK"); ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ALLOW_M1_FALLBACK: %w", err))
		} else {
			c.Trading.AllowFallback = b
		}
	}

	setInt("SWING_LOOKBACK", &c.Filter.SwingLookback)
	setFloat("SWEEP_ATR_MULTIPLIER", &c.Filter.RangeMultiplier)
	setFloat("MIN_BODY_RATIO", &c.Filter.BodyRatio)
	setInt("ATR_PERIOD", &c.Filter.ATRPeriod)

	setInt("MAX_LOSSES_PER_DAY", &c.Risk.MaxLossesPerDay)
	setFloat("MAX_TRADE_VOLUME", &c.Risk.MaxVolume)

	setString("BROKER_MODE", &c.Broker.Mode)
	setString("BROKER_API_BASE_URL", &c.Broker.BaseURL)
	setString("BROKER_API_KEY", &c.Broker.APIKey)

	if v, ok := get("MONITORING_INTERVAL_MINUTES"); ok {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("MONITORING_INTERVAL_MINUTES: bad value %q", v))
		} else {
			c.Monitor.Interval = fmt.Sprintf("%dm", n)
		}
	}
	if v, ok := get("ANALYSIS_INTERVAL_MINUTES"); ok {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("ANALYSIS_INTERVAL_MINUTES: bad value %q", v))
		} else {
			c.Monitor.AnalysisInterval = fmt.Sprintf("%dm", n)
		}
	}

	setString("STATE_DIR", &c.Storage.Dir)
	setString("JOURNAL_TYPE", &c.Journal.Type)
	setString("JOURNAL_DB_PATH", &c.Journal.DBPath)
	setString("JOURNAL_TRADES_FILE", &c.Journal.TradesFile)
	setString("NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL)
	setString("NOTIFY_WEBHOOK_TOKEN", &c.Notify.Token)
	setString("ANALYST_URL", &c.Analyst.URL)
	setString("ANALYST_API_KEY", &c.Analyst.APIKey)
	setString("SERVER_ADDR", &c.Server.Addr)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FILE", &c.Log.FileName)

	return errs
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = trade.NormalizeSymbol(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
