// Package config provides configuration management for the backtester.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
)

// Data drivers.
const (
	DriverSQLite     = "sqlite"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
	DriverCSV        = "csv"
)

// Intrinsic substitution modes for expiry-day exits.
const (
	IntrinsicZeroClose = "zero_close"
	IntrinsicAlways    = "always"
	IntrinsicNever     = "never"
)

// Config holds all application configuration.
type Config struct {
	Data    DataConfig                   `mapstructure:"data"`
	Engine  EngineConfig                 `mapstructure:"engine"`
	Markets map[string]models.MarketSpec `mapstructure:"markets"`
	Logging LoggingConfig                `mapstructure:"logging"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// DataConfig selects and locates the market data archive.
type DataConfig struct {
	Driver        string `mapstructure:"driver"` // sqlite, postgres, clickhouse, csv
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	CSVDir        string `mapstructure:"csv_dir"`
}

// EngineConfig holds simulation settings.
type EngineConfig struct {
	Workers              int    `mapstructure:"workers"`
	ExpiryToleranceDays  int    `mapstructure:"expiry_tolerance_days"`
	IntrinsicOnExpiry    string `mapstructure:"intrinsic_on_expiry"`
	CalendarLookbackDays int    `mapstructure:"calendar_lookback_days"`
}

// LoggingConfig mirrors logging.LogConfig.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultMarkets are the contract specifications used when the config file
// does not override them.
var DefaultMarkets = map[string]models.MarketSpec{
	"NIFTY":     {LotSize: 75, TickSize: 50},
	"BANKNIFTY": {LotSize: 25, TickSize: 100},
	"FINNIFTY":  {LotSize: 40, TickSize: 50},
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/fno-backtester"
	}
	return filepath.Join(home, ".config", "fno-backtester")
}

// Path returns the config file path inside configDir.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is replaced by the template and loading continues.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	cfg.Dir = configDir

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.Dir = DefaultConfigDir()
	cfg.normalize()
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("data.driver", DriverSQLite)
	v.SetDefault("data.sqlite_path", filepath.Join(configDir, "archive.db"))
	v.SetDefault("data.csv_dir", filepath.Join(configDir, "csv"))

	v.SetDefault("engine.workers", runtime.NumCPU())
	v.SetDefault("engine.expiry_tolerance_days", 1)
	v.SetDefault("engine.intrinsic_on_expiry", IntrinsicZeroClose)
	v.SetDefault("engine.calendar_lookback_days", 30)

	for symbol, spec := range DefaultMarkets {
		key := "markets." + strings.ToLower(symbol)
		v.SetDefault(key+".lot_size", spec.LotSize)
		v.SetDefault(key+".tick_size", spec.TickSize)
	}

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", false)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.file_path", logDefaults.FilePath)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and fall through to defaults
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BACKTESTER_DATA_DRIVER"); v != "" {
		cfg.Data.Driver = v
	}
	if v := os.Getenv("BACKTESTER_DB_PATH"); v != "" {
		cfg.Data.SQLitePath = v
	}
	if v := os.Getenv("BACKTESTER_PG_DSN"); v != "" {
		cfg.Data.PostgresDSN = v
	}
	if v := os.Getenv("BACKTESTER_CH_DSN"); v != "" {
		cfg.Data.ClickHouseDSN = v
	}
	if v := os.Getenv("BACKTESTER_CSV_DIR"); v != "" {
		cfg.Data.CSVDir = v
	}
	if v := os.Getenv("BACKTESTER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Workers = n
		}
	}
	if v := os.Getenv("BACKTESTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// normalize upper-cases market symbols, which viper lower-cases on read.
func (c *Config) normalize() {
	markets := make(map[string]models.MarketSpec, len(c.Markets))
	for symbol, spec := range c.Markets {
		markets[strings.ToUpper(symbol)] = spec
	}
	c.Markets = markets
	c.Data.Driver = strings.ToLower(strings.TrimSpace(c.Data.Driver))
	c.Engine.IntrinsicOnExpiry = strings.ToLower(strings.TrimSpace(c.Engine.IntrinsicOnExpiry))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Data.Driver {
	case DriverSQLite:
		if c.Data.SQLitePath == "" {
			return fmt.Errorf("data.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Data.PostgresDSN == "" {
			return fmt.Errorf("data.postgres_dsn is required for the postgres driver")
		}
	case DriverClickHouse:
		if c.Data.ClickHouseDSN == "" {
			return fmt.Errorf("data.clickhouse_dsn is required for the clickhouse driver")
		}
	case DriverCSV:
		if c.Data.CSVDir == "" {
			return fmt.Errorf("data.csv_dir is required for the csv driver")
		}
	default:
		return fmt.Errorf("invalid data driver: %s (must be sqlite, postgres, clickhouse or csv)", c.Data.Driver)
	}

	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be non-negative")
	}
	if c.Engine.ExpiryToleranceDays < 0 || c.Engine.ExpiryToleranceDays > 7 {
		return fmt.Errorf("engine.expiry_tolerance_days must be between 0 and 7")
	}
	switch c.Engine.IntrinsicOnExpiry {
	case IntrinsicZeroClose, IntrinsicAlways, IntrinsicNever:
	default:
		return fmt.Errorf("invalid engine.intrinsic_on_expiry: %s (must be zero_close, always or never)", c.Engine.IntrinsicOnExpiry)
	}
	if c.Engine.CalendarLookbackDays < 0 {
		return fmt.Errorf("engine.calendar_lookback_days must be non-negative")
	}

	for symbol, spec := range c.Markets {
		if spec.LotSize <= 0 {
			return fmt.Errorf("markets.%s.lot_size must be positive", symbol)
		}
		if spec.TickSize <= 0 {
			return fmt.Errorf("markets.%s.tick_size must be positive", symbol)
		}
	}

	return nil
}

// LotSizes returns the lot size table keyed by symbol.
func (c *Config) LotSizes() map[string]int {
	out := make(map[string]int, len(c.Markets))
	for symbol, spec := range c.Markets {
		out[symbol] = spec.LotSize
	}
	return out
}

// TickSizes returns the strike tick table keyed by symbol.
func (c *Config) TickSizes() map[string]float64 {
	out := make(map[string]float64, len(c.Markets))
	for symbol, spec := range c.Markets {
		out[symbol] = spec.TickSize
	}
	return out
}

// LogConfig converts the logging section for logging.NewLoggerWithConfig.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
