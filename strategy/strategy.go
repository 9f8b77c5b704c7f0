// Package strategy turns a bar series into entry signals for the
// backtest engines. Every provider decides bar i from data up to bar i-1.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"fxopen/backtest"
	"fxopen/trading"
)

const DefaultPeriod = 20

// Provider produces one single-session signal per bar.
type Provider interface {
	Name() string
	Signals(bars []backtest.Bar) []backtest.Signal
}

// SessionProvider produces EUR and US entries per bar.
type SessionProvider interface {
	Name() string
	SessionSignals(bars []backtest.Bar) []backtest.SessionSignal
}

// SMA returns the simple moving average of closes over period. Entries
// before the window fills are nil.
func SMA(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			v := sum / float64(period)
			out[i] = &v
		}
	}
	return out
}

// PriceTrend goes long when yesterday's close is above its SMA and short
// when below. The SMA at bar i covers closes i-period..i-1.
type PriceTrend struct {
	Period int
}

func (p PriceTrend) period() int {
	if p.Period <= 0 {
		return DefaultPeriod
	}
	return p.Period
}

func (p PriceTrend) Name() string { return fmt.Sprintf("price_trend_sma%d", p.period()) }

func (p PriceTrend) Signals(bars []backtest.Bar) []backtest.Signal {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	sma := SMA(closes, p.period())

	out := make([]backtest.Signal, len(bars))
	for i := range bars {
		out[i].Direction = backtest.DirectionFlat
		if i == 0 || sma[i-1] == nil {
			continue
		}
		switch prev := closes[i-1]; {
		case prev > *sma[i-1]:
			out[i].Direction = backtest.DirectionLong
		case prev < *sma[i-1]:
			out[i].Direction = backtest.DirectionShort
		}
	}
	return out
}

// DualMarketOpen trades the same direction at both session opens, priced
// with the session approximations from package trading.
type DualMarketOpen struct {
	Trend Provider
}

func (d DualMarketOpen) Name() string { return "dual_" + d.Trend.Name() }

func (d DualMarketOpen) SessionSignals(bars []backtest.Bar) []backtest.SessionSignal {
	single := d.Trend.Signals(bars)
	out := make([]backtest.SessionSignal, len(bars))
	for i, b := range bars {
		dir := backtest.DirectionFlat
		if i < len(single) {
			dir = single[i].Direction
		}
		eur, us := trading.ApproximateEUROpen(b), trading.ApproximateUSOpen(b)
		out[i] = backtest.SessionSignal{
			EUR: backtest.SessionEntry{Direction: dir, OpenPrice: &eur},
			US:  backtest.SessionEntry{Direction: dir, OpenPrice: &us},
		}
	}
	return out
}

type factory func(period int) Provider

var registry = map[string]factory{
	"price_trend":       func(n int) Provider { return PriceTrend{Period: n} },
	"price_trend_sma20": func(int) Provider { return PriceTrend{Period: 20} },
}

// Names lists the registered strategy names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ByName builds a registered provider. A period <= 0 selects the default.
func ByName(name string, period int) (Provider, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(period), nil
}

// FromSpec resolves a config strategy block. An empty type selects
// price_trend.
func FromSpec(spec backtest.StrategySpec) (Provider, error) {
	name := spec.Type
	if strings.TrimSpace(name) == "" {
		name = "price_trend"
	}
	period, err := intParam(spec.Params, "period")
	if err != nil {
		return nil, err
	}
	return ByName(name, period)
}

func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("strategy param %s: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("strategy param %s: unsupported type %T", key, v)
	}
}
