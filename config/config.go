package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fxopen/backtest"
)

// YAMLConfig mirrors config.yaml.
type YAMLConfig struct {
	Data struct {
		File string `yaml:"file"`
		URL  string `yaml:"url"`
	} `yaml:"data"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Backtest struct {
		TakeProfitPips   float64  `yaml:"take_profit_pips"`
		StopLossPips     *float64 `yaml:"stop_loss_pips"`
		CostPerTradePips *float64 `yaml:"cost_per_trade_pips"`
		InitialEquity    float64  `yaml:"initial_equity"`
		PipValue         float64  `yaml:"pip_value"`
		Hold             string   `yaml:"hold"`
	} `yaml:"backtest"`

	Strategy struct {
		Name   string `yaml:"name"`
		Period int    `yaml:"period"`
	} `yaml:"strategy"`

	Sweep struct {
		Workers int `yaml:"workers"`
	} `yaml:"sweep"`
}

// Config is the resolved application configuration.
type Config struct {
	// Daily bar CSV file.
	DataFile string
	// Remote CSV URL; takes priority over DataFile when set.
	DataURL string

	// HTTP listen port.
	Port int

	// SQLite path of the run archive.
	DBPath string

	LogLevel  string
	LogFormat string

	Strategy  string
	SMAPeriod int

	TakeProfitPips   float64
	StopLossPips     *float64
	CostPerTradePips float64
	InitialEquity    float64
	PipValue         float64
	Hold             string

	SweepWorkers int
}

// DefaultConfig holds the values used when nothing overrides them.
var DefaultConfig = Config{
	DataFile:         "data/eurusd_daily.csv",
	Port:             19527,
	DBPath:           "data/runs.db",
	LogLevel:         "info",
	LogFormat:        "console",
	Strategy:         "price_trend",
	SMAPeriod:        20,
	TakeProfitPips:   10,
	CostPerTradePips: backtest.DefaultCostPerTradePips,
	InitialEquity:    backtest.DefaultInitialEquity,
	PipValue:         backtest.DefaultPipValue,
	Hold:             string(backtest.HoldEOD),
}

// LoadFromFile overlays a YAML file onto DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var y YAMLConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	config := DefaultConfig

	if y.Data.File != "" {
		config.DataFile = y.Data.File
	}
	if y.Data.URL != "" {
		config.DataURL = y.Data.URL
	}
	if y.Server.Port > 0 {
		config.Port = y.Server.Port
	}
	if y.Store.Path != "" {
		config.DBPath = y.Store.Path
	}
	if y.Log.Level != "" {
		config.LogLevel = y.Log.Level
	}
	if y.Log.Format != "" {
		config.LogFormat = y.Log.Format
	}

	// Backtest parameters.
	if y.Backtest.TakeProfitPips != 0 {
		config.TakeProfitPips = y.Backtest.TakeProfitPips
	}
	config.StopLossPips = y.Backtest.StopLossPips
	if y.Backtest.CostPerTradePips != nil {
		config.CostPerTradePips = *y.Backtest.CostPerTradePips
	}
	if y.Backtest.InitialEquity != 0 {
		config.InitialEquity = y.Backtest.InitialEquity
	}
	if y.Backtest.PipValue != 0 {
		config.PipValue = y.Backtest.PipValue
	}
	if y.Backtest.Hold != "" {
		config.Hold = y.Backtest.Hold
	}

	if y.Strategy.Name != "" {
		config.Strategy = y.Strategy.Name
	}
	if y.Strategy.Period > 0 {
		config.SMAPeriod = y.Strategy.Period
	}
	if y.Sweep.Workers > 0 {
		config.SweepWorkers = y.Sweep.Workers
	}

	return &config, nil
}

// Load resolves configuration. Precedence: env > config file > defaults.
// A .env file in the working directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := DefaultConfig
	if configPath != "" {
		cfg, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = *cfg
	}
	if err := applyEnv(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// loadDotEnv exports the variables in path without overriding ones already
// set. A missing file is not an error; a malformed one is.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func applyEnv(c *Config) error {
	c.DataFile = getEnv("FXOPEN_DATA_FILE", c.DataFile)
	c.DataURL = getEnv("FXOPEN_DATA_URL", c.DataURL)
	c.DBPath = getEnv("FXOPEN_DB_PATH", c.DBPath)
	c.LogLevel = getEnv("FXOPEN_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("FXOPEN_LOG_FORMAT", c.LogFormat)
	c.Strategy = getEnv("FXOPEN_STRATEGY", c.Strategy)
	c.Hold = getEnv("FXOPEN_HOLD", c.Hold)

	var err error
	if c.Port, err = getEnvInt("FXOPEN_PORT", c.Port); err != nil {
		return err
	}
	if c.SMAPeriod, err = getEnvInt("FXOPEN_SMA_PERIOD", c.SMAPeriod); err != nil {
		return err
	}
	if c.SweepWorkers, err = getEnvInt("FXOPEN_SWEEP_WORKERS", c.SweepWorkers); err != nil {
		return err
	}
	if c.TakeProfitPips, err = getEnvFloat("FXOPEN_TP_PIPS", c.TakeProfitPips); err != nil {
		return err
	}
	if c.CostPerTradePips, err = getEnvFloat("FXOPEN_COST_PIPS", c.CostPerTradePips); err != nil {
		return err
	}
	if c.InitialEquity, err = getEnvFloat("FXOPEN_INITIAL_EQUITY", c.InitialEquity); err != nil {
		return err
	}

	// "none" turns the stop-loss off.
	if v := strings.TrimSpace(os.Getenv("FXOPEN_SL_PIPS")); v != "" {
		if strings.EqualFold(v, "none") {
			c.StopLossPips = nil
		} else {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("FXOPEN_SL_PIPS: %w", err)
			}
			c.StopLossPips = &f
		}
	}
	return nil
}

// RunConfig converts the backtest section into engine parameters.
func (c *Config) RunConfig() backtest.RunConfig {
	return backtest.RunConfig{
		TakeProfitPips:   c.TakeProfitPips,
		StopLossPips:     c.StopLossPips,
		CostPerTradePips: c.CostPerTradePips,
		InitialEquity:    c.InitialEquity,
		PipValue:         c.PipValue,
		Hold:             backtest.HoldPolicy(strings.ToLower(c.Hold)),
	}
}

func (c *Config) StrategySpec() backtest.StrategySpec {
	return backtest.StrategySpec{Type: c.Strategy, Params: map[string]any{"period": c.SMAPeriod}}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
