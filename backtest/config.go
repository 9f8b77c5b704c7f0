package backtest

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HoldPolicy decides how long an untriggered position lives.
type HoldPolicy string

const (
	// HoldEOD closes every position at the close of its entry bar.
	HoldEOD HoldPolicy = "eod"
	// HoldCarry keeps a position open across bars until TP/SL fires or the
	// series ends.
	HoldCarry HoldPolicy = "carry"
)

const (
	DefaultCostPerTradePips = 2.0
	DefaultInitialEquity    = 10000.0
	DefaultPipValue         = 10.0
)

type RunConfig struct {
	TakeProfitPips   float64    `json:"take_profit_pips"`
	StopLossPips     *float64   `json:"stop_loss_pips,omitempty"`
	CostPerTradePips float64    `json:"cost_per_trade_pips"`
	InitialEquity    float64    `json:"initial_equity"`
	PipValue         float64    `json:"pip_value"`
	Hold             HoldPolicy `json:"hold"`
}

// StrategySpec names a signal provider and its parameters. It is resolved
// outside this package.
type StrategySpec struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params" json:"params,omitempty"`
}

type YAMLConfig struct {
	Backtest struct {
		TakeProfitPips   float64  `yaml:"take_profit_pips"`
		StopLossPips     YAMLStopLoss `yaml:"stop_loss_pips"`
		CostPerTradePips *float64     `yaml:"cost_per_trade_pips"`
		InitialEquity    *float64     `yaml:"initial_equity"`
		PipValue         float64      `yaml:"pip_value"`
		Hold             string       `yaml:"hold"`
	} `yaml:"backtest"`

	Strategy StrategySpec `yaml:"strategy"`
}

// YAMLStopLoss is a stop_loss_pips value: a number, or "none" to run
// without a stop-loss. Set is false when the key is absent or null.
type YAMLStopLoss struct {
	Set  bool
	Pips *float64
}

func (s *YAMLStopLoss) UnmarshalYAML(n *yaml.Node) error {
	s.Set = true
	if n.Kind == yaml.ScalarNode && strings.EqualFold(strings.TrimSpace(n.Value), "none") {
		s.Pips = nil
		return nil
	}
	var v float64
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("stop_loss_pips: %w", err)
	}
	s.Pips = &v
	return nil
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		TakeProfitPips:   10,
		CostPerTradePips: DefaultCostPerTradePips,
		InitialEquity:    DefaultInitialEquity,
		PipValue:         DefaultPipValue,
		Hold:             HoldEOD,
	}
}

// StopLoss returns a pointer suitable for RunConfig.StopLossPips.
func StopLoss(pips float64) *float64 {
	return &pips
}

func (c RunConfig) exitRule() ExitRule {
	return ExitRule{
		TakeProfitPips: c.TakeProfitPips,
		StopLossPips:   c.StopLossPips,
		CostPips:       c.CostPerTradePips,
	}
}

func (c RunConfig) withDefaults() RunConfig {
	if c.PipValue == 0 {
		c.PipValue = DefaultPipValue
	}
	if c.Hold == "" {
		c.Hold = HoldEOD
	}
	return c
}

// Validate checks the parameters of a run.
func (c RunConfig) Validate() error {
	if math.IsNaN(c.TakeProfitPips) || math.IsInf(c.TakeProfitPips, 0) || c.TakeProfitPips <= 0 {
		return configErr("take_profit_pips", "must be > 0, got %v", c.TakeProfitPips)
	}
	if c.StopLossPips != nil {
		sl := *c.StopLossPips
		if math.IsNaN(sl) || math.IsInf(sl, 0) || sl <= 0 {
			return configErr("stop_loss_pips", "must be > 0 when set, got %v", sl)
		}
	}
	if math.IsNaN(c.CostPerTradePips) || math.IsInf(c.CostPerTradePips, 0) || c.CostPerTradePips < 0 {
		return configErr("cost_per_trade_pips", "must be >= 0, got %v", c.CostPerTradePips)
	}
	if math.IsNaN(c.InitialEquity) || math.IsInf(c.InitialEquity, 0) {
		return configErr("initial_equity", "must be finite, got %v", c.InitialEquity)
	}
	if math.IsNaN(c.PipValue) || math.IsInf(c.PipValue, 0) || c.PipValue <= 0 {
		return configErr("pip_value", "must be > 0, got %v", c.PipValue)
	}
	switch c.Hold {
	case HoldEOD, HoldCarry:
	default:
		return configErr("hold", "unknown hold policy %q", c.Hold)
	}
	return nil
}

// validateBars rejects malformed OHLC and a non-increasing date order.
// Bars with a zero Date are only checked for OHLC sanity and are taken to
// be in order already; the HTTP API refuses them.
func validateBars(bars []Bar) error {
	for i, b := range bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return configErr("bars", "bar %d has a non-finite price", i)
			}
		}
		if b.High < b.Low {
			return configErr("bars", "bar %d has high %v < low %v", i, b.High, b.Low)
		}
		if i > 0 && !b.Date.IsZero() && !bars[i-1].Date.IsZero() && !b.Date.After(bars[i-1].Date) {
			return configErr("bars", "bar %d (%s) is not after bar %d (%s)",
				i, b.Date.Format("2006-01-02"), i-1, bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// LoadRunConfig reads a backtest YAML file. Fields left out keep their
// defaults; an absent stop_loss_pips selects the no-stop-loss variant.
func LoadRunConfig(path string) (RunConfig, StrategySpec, error) {
	return LoadRunConfigOnto(path, DefaultRunConfig())
}

// LoadRunConfigOnto reads a backtest YAML file over base. Fields left out,
// stop_loss_pips included, keep the value they have in base.
func LoadRunConfigOnto(path string, base RunConfig) (RunConfig, StrategySpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, StrategySpec{}, fmt.Errorf("read config: %w", err)
	}
	return OverlayRunConfig(raw, base)
}

func ParseRunConfig(raw []byte) (RunConfig, StrategySpec, error) {
	return OverlayRunConfig(raw, DefaultRunConfig())
}

func OverlayRunConfig(raw []byte, base RunConfig) (RunConfig, StrategySpec, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, StrategySpec{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := base
	if yc.Backtest.TakeProfitPips != 0 {
		cfg.TakeProfitPips = yc.Backtest.TakeProfitPips
	}
	if yc.Backtest.StopLossPips.Set {
		cfg.StopLossPips = yc.Backtest.StopLossPips.Pips
	}
	if yc.Backtest.CostPerTradePips != nil {
		cfg.CostPerTradePips = *yc.Backtest.CostPerTradePips
	}
	if yc.Backtest.InitialEquity != nil {
		cfg.InitialEquity = *yc.Backtest.InitialEquity
	}
	if yc.Backtest.PipValue != 0 {
		cfg.PipValue = yc.Backtest.PipValue
	}
	if h := strings.TrimSpace(yc.Backtest.Hold); h != "" {
		cfg.Hold = HoldPolicy(strings.ToLower(h))
	}

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, StrategySpec{}, err
	}
	return cfg, yc.Strategy, nil
}
