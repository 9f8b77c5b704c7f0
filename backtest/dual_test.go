package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priced(d Direction, p float64) SessionEntry {
	return SessionEntry{Direction: d, OpenPrice: &p}
}

func TestRunDualSinglePositionInvariant(t *testing.T) {
	t.Parallel()
	// EUR long at 1.1000 never reaches TP 1.1010, so US may not open.
	bars := series([4]float64{1.1000, 1.1005, 1.0950, 1.0990})
	signals := []SessionSignal{{EUR: priced(DirectionLong, 1.1000), US: priced(DirectionLong, 1.0997)}}

	res, err := RunDual(bars, signals, noSLConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, SessionEUR, tr.Session)
	assert.Equal(t, ExitEndOfDay, tr.ExitReason)
	assert.InDelta(t, -12, tr.Pips, 1e-6)
	assert.Len(t, res.EquityCurve, 1)
}

func TestRunDualTwoTradesOnOneBar(t *testing.T) {
	t.Parallel()
	bars := series([4]float64{1.1000, 1.1030, 1.0995, 1.1020})
	signals := []SessionSignal{{EUR: priced(DirectionLong, 1.1000), US: priced(DirectionLong, 1.1006)}}

	res, err := RunDual(bars, signals, noSLConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, SessionEUR, res.Trades[0].Session)
	assert.Equal(t, ExitTakeProfit, res.Trades[0].ExitReason)
	assert.Equal(t, SessionUS, res.Trades[1].Session)
	assert.InDelta(t, 1.1006, res.Trades[1].EntryPrice, 1e-12)
	assert.Equal(t, []float64{10160}, res.EquityCurve.Values())

	rep := AnalyzeSessions(res)
	assert.Equal(t, 1, rep.EUR.Trades)
	assert.Equal(t, 1, rep.US.Trades)
	assert.Equal(t, 1, rep.DaysWithTwo)
	assert.Zero(t, rep.DaysWithOne)
	assert.Zero(t, rep.DaysWithoutTrade)
}

func TestRunDualUSOnlyBecomesEOD(t *testing.T) {
	t.Parallel()
	bars := series([4]float64{1.1000, 1.1008, 1.0995, 1.1004})
	signals := []SessionSignal{{EUR: SessionEntry{Direction: DirectionFlat}, US: priced(DirectionShort, 1.1002)}}

	res, err := RunDual(bars, signals, noSLConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, SessionUS, res.Trades[0].Session)
	assert.Equal(t, ExitEndOfDay, res.Trades[0].ExitReason)
	assert.InDelta(t, -4, res.Trades[0].Pips, 1e-6)
}

func TestRunDualAppliesStopLossWhenConfigured(t *testing.T) {
	t.Parallel()
	cfg := noSLConfig()
	cfg.StopLossPips = StopLoss(10)
	bars := series([4]float64{1.1000, 1.1004, 1.0985, 1.0990})
	signals := []SessionSignal{{EUR: priced(DirectionLong, 1.1000), US: priced(DirectionShort, 1.0992)}}

	res, err := RunDual(bars, signals, cfg)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, ExitStopLoss, res.Trades[0].ExitReason)
	assert.Equal(t, SessionUS, res.Trades[1].Session)
}

func TestRunDualSkipsUnpricedEntries(t *testing.T) {
	t.Parallel()
	bars := series(
		[4]float64{1.1000, 1.1005, 1.0995, 1.1000},
		[4]float64{1.1000, 1.1005, 1.0995, 1.1000},
	)
	signals := []SessionSignal{
		{EUR: SessionEntry{Direction: DirectionLong}, US: SessionEntry{Direction: DirectionFlat}},
		{EUR: SessionEntry{Direction: DirectionFlat}, US: SessionEntry{Direction: DirectionShort}},
	}
	res, err := RunDual(bars, signals, noSLConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "EUR")
	assert.Contains(t, res.Warnings[1], "US")
}

func TestRunDualPadsMissingSignals(t *testing.T) {
	t.Parallel()
	bars := series(
		[4]float64{1.1000, 1.1005, 1.0995, 1.1000},
		[4]float64{1.1000, 1.1005, 1.0995, 1.1000},
	)
	res, err := RunDual(bars, nil, noSLConfig())
	require.NoError(t, err)
	assert.Len(t, res.EquityCurve, 2)
	require.Len(t, res.Warnings, 1)

	rep := AnalyzeSessions(res)
	assert.Equal(t, 2, rep.DaysWithoutTrade)
}
