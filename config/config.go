package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rustyeddy/tradekeeper/filter"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/session"
	"github.com/rustyeddy/tradekeeper/trade"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration
type Config struct {
	Trading TradingConfig `json:"trading" yaml:"trading"`
	Filter  filter.Params `json:"filter" yaml:"filter"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Analyst AnalystConfig `json:"analyst" yaml:"analyst"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// TradingConfig selects what is traded and when
type TradingConfig struct {
	Sessions      string   `json:"sessions" yaml:"sessions"`
	Timezone      string   `json:"timezone" yaml:"timezone"`
	Symbols       []string `json:"symbols" yaml:"symbols"`
	Volume        float64  `json:"volume" yaml:"volume"`
	CommentTag    string   `json:"comment_tag" yaml:"comment_tag"`
	AllowFallback bool     `json:"allow_fallback" yaml:"allow_fallback"`
}

// Location loads the trading timezone.
func (t TradingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(t.Timezone)
}

type RiskConfig struct {
	MaxLossesPerDay int     `json:"max_losses_per_day" yaml:"max_losses_per_day"`
	MaxVolume       float64 `json:"max_volume" yaml:"max_volume"`
	MinRR           float64 `json:"min_rr" yaml:"min_rr"`
}

func (r RiskConfig) Policy() risk.OrderPolicy {
	return risk.OrderPolicy{MaxVolume: r.MaxVolume, MinRR: r.MinRR}
}

// BrokerConfig selects the broker adapter
type BrokerConfig struct {
	Mode            string  `json:"mode" yaml:"mode"` // "paper" or "mt5"
	BaseURL         string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey          string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout         string  `json:"timeout" yaml:"timeout"`
	HistoryLookback string  `json:"history_lookback" yaml:"history_lookback"`
	ContractSize    float64 `json:"contract_size,omitempty" yaml:"contract_size,omitempty"`
}

// MonitorConfig sets the reconciliation and analysis schedules
type MonitorConfig struct {
	Interval         string `json:"interval" yaml:"interval"`
	InitialDelay     string `json:"initial_delay" yaml:"initial_delay"`
	AnalysisInterval string `json:"analysis_interval" yaml:"analysis_interval"`
}

// StorageConfig is where local state lives
type StorageConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

func (s StorageConfig) TradesDir() string      { return filepath.Join(s.Dir, "trades") }
func (s StorageConfig) BreakerPath() string    { return filepath.Join(s.Dir, "circuit_breaker_stats.json") }
func (s StorageConfig) PausePath() string      { return filepath.Join(s.Dir, "bot_status.json") }
func (s StorageConfig) RecipientsPath() string { return filepath.Join(s.Dir, "recipients.json") }

// JournalConfig contains ledger parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type NotifyConfig struct {
	WebhookURL string   `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	Token      string   `json:"token,omitempty" yaml:"token,omitempty"`
	Recipients []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
}

type AnalystConfig struct {
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	FileName   string `json:"file-name,omitempty" yaml:"file-name,omitempty"`
	MaxSize    int    `json:"max-size" yaml:"max-size"`
	MaxBackups int    `json:"max-backups" yaml:"max-backups"`
	MaxAge     int    `json:"max-age" yaml:"max-age"`
	Compress   bool   `json:"compress" yaml:"compress"`
	Console    bool   `json:"console" yaml:"console"`
}

// LoadFromFile loads configuration from a file (JSON or YAML) over the
// defaults. Keys missing from the file keep their default values.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Trading.Symbols = splitSymbols(strings.Join(c.Trading.Symbols, ","))
	c.Broker.Mode = strings.ToLower(strings.TrimSpace(c.Broker.Mode))
	c.Journal.Type = strings.ToLower(strings.TrimSpace(c.Journal.Type))
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, else JSON)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := session.NewGate(c.Trading.Sessions, time.UTC); err != nil {
		return fmt.Errorf("trading.sessions: %w", err)
	}
	if _, err := c.Trading.Location(); err != nil {
		return fmt.Errorf("trading.timezone: %w", err)
	}
	if len(c.Trading.Symbols) == 0 {
		return errors.New("trading.symbols is required")
	}
	if c.Trading.Volume <= 0 {
		return errors.New("trading.volume must be positive")
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if c.Risk.MaxLossesPerDay <= 0 {
		return errors.New("risk.max_losses_per_day must be positive")
	}
	if c.Risk.MaxVolume > 0 && c.Trading.Volume > c.Risk.MaxVolume {
		return errors.New("trading.volume exceeds risk.max_volume")
	}

	switch c.Broker.Mode {
	case "paper":
	case "mt5":
		if c.Broker.BaseURL == "" {
			return errors.New("broker.base_url required for mt5 mode")
		}
	default:
		return errors.New("broker.mode must be 'paper' or 'mt5'")
	}

	for name, d := range map[string]string{
		"broker.timeout":            c.Broker.Timeout,
		"broker.history_lookback":   c.Broker.HistoryLookback,
		"monitor.interval":          c.Monitor.Interval,
		"monitor.initial_delay":     c.Monitor.InitialDelay,
		"monitor.analysis_interval": c.Monitor.AnalysisInterval,
		"analyst.timeout":           c.Analyst.Timeout,
	} {
		if _, err := parseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if iv, _ := parseDuration(c.Monitor.Interval); iv <= 0 {
		return errors.New("monitor.interval must be positive")
	}

	if c.Storage.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return errors.New("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && c.Journal.TradesFile == "" {
		return errors.New("journal trades_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return errors.New("journal db_path required for SQLite type")
	}
	return nil
}

// Supports reports whether symbol is configured for trading.
func (c *Config) Supports(symbol string) bool {
	return slices.Contains(c.Trading.Symbols, trade.NormalizeSymbol(symbol))
}

// Durations returns the parsed schedule and timeout values.
func (c *Config) Durations() Durations {
	var d Durations
	d.BrokerTimeout, _ = parseDuration(c.Broker.Timeout)
	d.HistoryLookback, _ = parseDuration(c.Broker.HistoryLookback)
	d.MonitorInterval, _ = parseDuration(c.Monitor.Interval)
	d.InitialDelay, _ = parseDuration(c.Monitor.InitialDelay)
	d.AnalysisInterval, _ = parseDuration(c.Monitor.AnalysisInterval)
	d.AnalystTimeout, _ = parseDuration(c.Analyst.Timeout)
	return d
}

type Durations struct {
	BrokerTimeout    time.Duration
	HistoryLookback  time.Duration
	MonitorInterval  time.Duration
	InitialDelay     time.Duration
	AnalysisInterval time.Duration
	AnalystTimeout   time.Duration
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			Sessions:      session.DefaultSessions,
			Timezone:      session.DefaultTimezone,
			Symbols:       []string{"XAUUSD"},
			Volume:        0.01,
			CommentTag:    "tradekeeper",
			AllowFallback: true,
		},
		Filter: filter.DefaultParams(),
		Risk: RiskConfig{
			MaxLossesPerDay: risk.DefaultMaxLossesPerDay,
		},
		Broker: BrokerConfig{
			Mode:            "paper",
			Timeout:         "30s",
			HistoryLookback: "48h",
		},
		Monitor: MonitorConfig{
			Interval:         "2m",
			InitialDelay:     "5s",
			AnalysisInterval: "15m",
		},
		Storage: StorageConfig{
			Dir: "./state",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./state/ledger.db",
		},
		Analyst: AnalystConfig{
			Timeout: "2m",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Console:    true,
		},
	}
}
