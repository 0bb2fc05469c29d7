// Package config loads the daemon configuration from YAML with environment
// expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rugwatch/internal/ingestion"
	"rugwatch/internal/notify"
	"rugwatch/internal/trading"
	"rugwatch/internal/watchlist"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "config.yaml"

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// File names under storage.data_dir.
const (
	WatchlistFile = "adresses.json"
	CustodyFile   = "wallets.json"
	SaltFile      = "salt.bin"
)

// Default service endpoints.
const (
	DefaultRPCURL      = "https://api.mainnet-beta.solana.com"
	DefaultMetricsAddr = ":9090"
	DefaultDataDir     = "data"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the top-level configuration.
type Config struct {
	Telegram  TelegramConfig         `yaml:"telegram"`
	Stream    ingestion.StreamConfig `yaml:"stream"`
	Trading   TradingConfig          `yaml:"trading"`
	Custody   CustodyConfig          `yaml:"custody"`
	Storage   StorageConfig          `yaml:"storage"`
	Journal   JournalConfig          `yaml:"journal"`
	Watchlist WatchlistConfig        `yaml:"watchlist"`
	Metrics   MetricsConfig          `yaml:"metrics"`
	Logging   LoggingConfig          `yaml:"logging"`
}

// TelegramConfig holds bot settings.
type TelegramConfig struct {
	Token       string `yaml:"token"`
	AlertChatID int64  `yaml:"alert_chat_id"`
	PollTimeout int    `yaml:"poll_timeout"` // seconds
	Workers     int    `yaml:"workers"`
}

// TradingConfig holds trade-construction and RPC settings.
type TradingConfig struct {
	APIURL          string        `yaml:"api_url"`
	RPCURL          string        `yaml:"rpc_url"`
	ExplorerURL     string        `yaml:"explorer_url"`
	BuySlippageBps  int           `yaml:"buy_slippage_bps"`
	SellSlippageBps int           `yaml:"sell_slippage_bps"`
	PriorityFeeSol  float64       `yaml:"priority_fee_sol"`
	Pool            string        `yaml:"pool"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	SweepAmounts    []float64     `yaml:"amounts"`
}

// CustodyConfig holds key custody settings.
type CustodyConfig struct {
	// Passphrase feeds the key derivation. Empty matches wallets created
	// before a passphrase was configured.
	Passphrase string `yaml:"passphrase"`
}

// StorageConfig selects the durable store for watchlist and custody.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	DataDir     string `yaml:"data_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// JournalConfig configures the optional ClickHouse trade journal.
// The database named in the DSN is created on startup.
type JournalConfig struct {
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// WatchlistConfig holds matcher refresh settings.
type WatchlistConfig struct {
	RefreshInterval time.Duration         `yaml:"refresh_interval"`
	Redis           watchlist.RedisConfig `yaml:"redis"`
}

// MetricsConfig holds the metrics listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	trade := trading.DefaultConfig()
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: notify.DefaultPollTimeout,
			Workers:     notify.DefaultWorkers,
		},
		Stream: ingestion.DefaultStreamConfig(),
		Trading: TradingConfig{
			APIURL:          trading.DefaultPortalURL,
			RPCURL:          DefaultRPCURL,
			ExplorerURL:     trade.ExplorerURL,
			BuySlippageBps:  trade.BuySlippageBps,
			SellSlippageBps: trade.SellSlippageBps,
			PriorityFeeSol:  trade.PriorityFeeSol,
			Pool:            trade.Pool,
			HTTPTimeout:     trade.CallTimeout,
			SweepAmounts:    append([]float64(nil), notify.DefaultSweepAmounts...),
		},
		Storage: StorageConfig{
			Driver:  DriverFile,
			DataDir: DefaultDataDir,
		},
		Watchlist: WatchlistConfig{
			RefreshInterval: watchlist.DefaultRefreshInterval,
			Redis:           watchlist.RedisConfig{Channel: watchlist.DefaultChannel},
		},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file on top of Default. Environment
// references like ${TELEGRAM_BOT_TOKEN} are expanded before parsing. A
// missing file at DefaultPath yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills a few well-known secrets straight from the environment.
func (c *Config) applyEnv() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Custody.Passphrase == "" {
		c.Custody.Passphrase = os.Getenv("RUGWATCH_CUSTODY_PASSPHRASE")
	}
	if c.Storage.PostgresDSN == "" {
		c.Storage.PostgresDSN = os.Getenv("POSTGRES_DSN")
	}
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the file driver"))
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of file, postgres, memory", c.Storage.Driver))
	}

	if err := checkURL("stream.url", c.Stream.URL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("trading.api_url", c.Trading.APIURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("trading.rpc_url", c.Trading.RPCURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.Trading.BuySlippageBps < 0 || c.Trading.BuySlippageBps > 10000 {
		errs = append(errs, fmt.Errorf("trading.buy_slippage_bps %d out of range 0-10000", c.Trading.BuySlippageBps))
	}
	if c.Trading.SellSlippageBps < 0 || c.Trading.SellSlippageBps > 10000 {
		errs = append(errs, fmt.Errorf("trading.sell_slippage_bps %d out of range 0-10000", c.Trading.SellSlippageBps))
	}
	if c.Trading.PriorityFeeSol < 0 {
		errs = append(errs, errors.New("trading.priority_fee_sol must not be negative"))
	}
	for _, a := range c.Trading.SweepAmounts {
		if a <= 0 || a > notify.MaxSweepAmountSol {
			errs = append(errs, fmt.Errorf("trading.amounts: %v out of range (0, %v]", a, notify.MaxSweepAmountSol))
		}
	}
	if c.Stream.Backoff.Multiplier != 0 && c.Stream.Backoff.Multiplier < 1 {
		errs = append(errs, errors.New("stream.backoff.multiplier must be >= 1"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateDaemon checks the settings only the long-running daemon needs.
func (c *Config) ValidateDaemon() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required (or set TELEGRAM_BOT_TOKEN)"))
	}
	if c.Telegram.AlertChatID == 0 {
		errs = append(errs, errors.New("telegram.alert_chat_id is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// DataPath returns a file path under storage.data_dir.
func (c *Config) DataPath(name string) string {
	return filepath.Join(c.Storage.DataDir, name)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s)
	}
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s %q is not a valid URL", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme %q is not one of %s", field, u.Scheme, strings.Join(schemes, ", "))
}
