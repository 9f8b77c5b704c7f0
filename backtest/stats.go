package backtest

import (
	"encoding/json"
	"math"
	"strconv"
)

// Ratio is a float that may legitimately be +Inf. It encodes +Inf as the
// JSON string "+Inf" since JSON numbers cannot represent it.
type Ratio float64

func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return []byte(`"+Inf"`), nil
	}
	return []byte(strconv.FormatFloat(float64(r), 'g', -1, 64)), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == `"+Inf"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

func (r Ratio) String() string {
	if r.IsInf() {
		return "+Inf"
	}
	return strconv.FormatFloat(float64(r), 'f', 2, 64)
}

type Summary struct {
	TotalTrades      int     `json:"total_trades"`
	LongTrades       int     `json:"long_trades"`
	ShortTrades      int     `json:"short_trades"`
	TotalPips        float64 `json:"total_pips"`
	AvgPipsPerTrade  float64 `json:"avg_pips_per_trade"`
	AvgPipsPerDay    float64 `json:"avg_pips_per_day"`
	WinRate          float64 `json:"win_rate"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
	ProfitFactor     Ratio   `json:"profit_factor"`
	MaxDrawdownPips  float64 `json:"max_drawdown_pips"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	Sharpe           float64 `json:"sharpe"`
	SharpeAnnualized float64 `json:"sharpe_annualized"`
	FinalEquity      float64 `json:"final_equity"`
}

// Summarize derives performance statistics from a finished run. A trade
// with pips <= 0 counts as a loss. Drawdown is measured from initial.
func Summarize(trades []Trade, curve EquityCurve, initial, pipValue float64) Summary {
	if pipValue <= 0 {
		pipValue = DefaultPipValue
	}
	var s Summary
	s.MaxDrawdownPips, s.MaxDrawdownPct = MaxDrawdown(curve, initial, pipValue)
	if n := len(curve); n > 0 {
		s.FinalEquity = curve[n-1].Equity
	}

	n := len(trades)
	if n == 0 {
		return s
	}

	var wins, losses []float64
	var winSum, lossSum float64
	for _, t := range trades {
		s.TotalPips += t.Pips
		switch t.Direction {
		case DirectionLong:
			s.LongTrades++
		case DirectionShort:
			s.ShortTrades++
		}
		if t.Pips > 0 {
			wins = append(wins, t.Pips)
			winSum += t.Pips
		} else {
			losses = append(losses, t.Pips)
			lossSum += t.Pips
		}
	}

	s.TotalTrades = n
	s.AvgPipsPerTrade = s.TotalPips / float64(n)
	if bars := len(curve); bars > 0 {
		s.AvgPipsPerDay = s.TotalPips / float64(bars)
	}
	s.WinRate = float64(len(wins)) / float64(n) * 100
	if len(wins) > 0 {
		s.AvgWin = winSum / float64(len(wins))
	}
	if len(losses) > 0 {
		s.AvgLoss = lossSum / float64(len(losses))
	}
	s.ProfitFactor = profitFactor(len(wins), winSum, lossSum)

	if sd := sampleStd(trades, s.AvgPipsPerTrade); n > 1 && sd > 0 {
		s.Sharpe = s.AvgPipsPerTrade / sd * math.Sqrt(float64(n))
	}
	if bars := len(curve); bars > 0 {
		s.SharpeAnnualized = s.Sharpe * math.Sqrt(252/float64(bars))
	}
	return s
}

func profitFactor(wins int, winSum, lossSum float64) Ratio {
	if wins == 0 {
		return 0
	}
	if lossSum == 0 {
		return Ratio(math.Inf(1))
	}
	return Ratio(winSum / math.Abs(lossSum))
}

func sampleStd(trades []Trade, mean float64) float64 {
	if len(trades) < 2 {
		return 0
	}
	var ss float64
	for _, t := range trades {
		d := t.Pips - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(trades)-1))
}
