package backtest

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradesWithPips(pips ...float64) []Trade {
	out := make([]Trade, len(pips))
	for i, p := range pips {
		d := DirectionLong
		if i%2 == 1 {
			d = DirectionShort
		}
		out[i] = Trade{Direction: d, Pips: p}
	}
	return out
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()
	s := Summarize(nil, curveOf(10000, 10000), 10000, 10)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Equal(t, Ratio(0), s.ProfitFactor)
	assert.Zero(t, s.Sharpe)
	assert.InDelta(t, 10000, s.FinalEquity, 1e-9)
}

func TestSummarizeAllWinners(t *testing.T) {
	t.Parallel()
	s := Summarize(tradesWithPips(8, 8, 8), curveOf(10000, 10080, 10160, 10240), 10000, 10)
	assert.True(t, s.ProfitFactor.IsInf())
	assert.InDelta(t, 100, s.WinRate, 1e-9)
	assert.Zero(t, s.AvgLoss)
	assert.Zero(t, s.Sharpe, "zero variance")
}

func TestSummarizeAllZeroPips(t *testing.T) {
	t.Parallel()
	s := Summarize(tradesWithPips(0, 0), curveOf(10000, 10000), 10000, 10)
	assert.Equal(t, Ratio(0), s.ProfitFactor)
	assert.Zero(t, s.WinRate)
	assert.Equal(t, 2, s.TotalTrades)
}

func TestSummarizeMixed(t *testing.T) {
	t.Parallel()
	trades := tradesWithPips(8, -12, 8)
	s := Summarize(trades, curveOf(10000, 10080, 9960, 10040), 10000, 10)

	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.LongTrades)
	assert.Equal(t, 1, s.ShortTrades)
	assert.InDelta(t, 4, s.TotalPips, 1e-9)
	assert.InDelta(t, 4.0/3, s.AvgPipsPerTrade, 1e-9)
	assert.InDelta(t, 1, s.AvgPipsPerDay, 1e-9)
	assert.InDelta(t, 200.0/3, s.WinRate, 1e-9)
	assert.InDelta(t, 8, s.AvgWin, 1e-9)
	assert.InDelta(t, -12, s.AvgLoss, 1e-9)
	assert.InDelta(t, 16.0/12, float64(s.ProfitFactor), 1e-9)
	assert.InDelta(t, 12, s.MaxDrawdownPips, 1e-9)
	assert.InDelta(t, 120.0/10080*100, s.MaxDrawdownPct, 1e-9)
}

func TestSummarizeSharpe(t *testing.T) {
	t.Parallel()
	curve := make(EquityCurve, 252)
	s := Summarize(tradesWithPips(1, 3), curve, 0, 10)
	// mean 2, sample std sqrt(2), n 2
	assert.InDelta(t, 2, s.Sharpe, 1e-9)
	assert.InDelta(t, 2, s.SharpeAnnualized, 1e-9)

	s = Summarize(tradesWithPips(1, 3), curve[:63], 0, 10)
	assert.InDelta(t, 4, s.SharpeAnnualized, 1e-9)
}

func TestSummarizeNeverNaN(t *testing.T) {
	t.Parallel()
	for _, s := range []Summary{
		Summarize(nil, nil, 0, 10),
		Summarize(tradesWithPips(5), nil, 10000, 10),
		Summarize(tradesWithPips(-5), curveOf(0, -50), 0, 10),
	} {
		for _, v := range []float64{s.AvgPipsPerTrade, s.AvgPipsPerDay, s.WinRate, s.Sharpe, s.SharpeAnnualized,
			s.MaxDrawdownPct, s.MaxDrawdownPips, float64(s.ProfitFactor)} {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestSummaryJSONInfiniteProfitFactor(t *testing.T) {
	t.Parallel()
	s := Summarize(tradesWithPips(8), curveOf(10000, 10080), 10000, 10)
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"profit_factor":"+Inf"`)

	var back Summary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.ProfitFactor.IsInf())

	raw, err = json.Marshal(Summary{ProfitFactor: 1.5})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"profit_factor":1.5`)
	assert.Equal(t, "1.50", Ratio(1.5).String())
}
