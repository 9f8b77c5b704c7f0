package terminalui

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fxopen/backtest"
	"fxopen/store"
)

func TestRenderBoxIsAligned(t *testing.T) {
	t.Parallel()
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	Render(&buf, Report{
		Title:   "EURUSD price_trend_sma20",
		Summary: backtest.Summary{TotalTrades: 1, TotalPips: 8, ProfitFactor: backtest.Ratio(math.Inf(1))},
		Trades: []backtest.Trade{{
			Date: d, ExitDate: d, Direction: backtest.DirectionLong,
			EntryPrice: 1.16, ExitPrice: 1.161, ExitReason: backtest.ExitTakeProfit, Pips: 8,
		}},
		Sessions:  &backtest.SessionReport{DaysWithOne: 1},
		Warnings:  []string{"signals cover 1 of 2 bars"},
		Color:     true,
		MaxTrades: 10,
	})

	out := buf.String()
	assert.Contains(t, out, "+Inf")
	assert.Contains(t, out, "2024-01-02")
	assert.Contains(t, out, "warning: signals cover 1 of 2 bars")

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "║") {
			assert.Equal(t, boxWidth+2, visibleWidth(line), line)
		}
	}
}

func TestRenderTradeCap(t *testing.T) {
	t.Parallel()
	trades := make([]backtest.Trade, 5)
	for i := range trades {
		trades[i] = backtest.Trade{Pips: float64(i), ExitReason: backtest.ExitEndOfDay}
	}
	var buf bytes.Buffer
	Render(&buf, Report{Title: "t", Trades: trades, MaxTrades: 2})
	assert.Contains(t, buf.String(), "last 2 of 5")
	assert.Equal(t, 2, strings.Count(buf.String(), " EOD "))
}

func TestRenderSweepAndRuns(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	RenderSweep(&buf, []backtest.SweepResult{
		{Config: backtest.RunConfig{TakeProfitPips: 10, StopLossPips: backtest.StopLoss(15)}, Trades: 3},
		{Config: backtest.RunConfig{TakeProfitPips: 20}, Trades: 2},
	}, 1, false)
	assert.Contains(t, buf.String(), "15.0")
	assert.NotContains(t, buf.String(), "20.0")

	buf.Reset()
	RenderRuns(&buf, nil)
	assert.Equal(t, "no archived runs\n", buf.String())

	buf.Reset()
	RenderRuns(&buf, []*store.Run{{ID: "abc", Kind: store.KindSweep, TradeCount: 4}})
	assert.Contains(t, buf.String(), "abc")
	assert.Contains(t, buf.String(), "sweep")
}
