package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitRuleLevels(t *testing.T) {
	t.Parallel()
	r := ExitRule{TakeProfitPips: 10, StopLossPips: StopLoss(20), CostPips: 2}

	tp, sl, hasSL := r.Levels(Position{Direction: DirectionLong, EntryPrice: 1.1})
	assert.InDelta(t, 1.1010, tp, 1e-9)
	assert.InDelta(t, 1.0980, sl, 1e-9)
	assert.True(t, hasSL)

	tp, sl, _ = r.Levels(Position{Direction: DirectionShort, EntryPrice: 1.1})
	assert.InDelta(t, 1.0990, tp, 1e-9)
	assert.InDelta(t, 1.1020, sl, 1e-9)

	_, _, hasSL = ExitRule{TakeProfitPips: 10}.Levels(Position{Direction: DirectionLong, EntryPrice: 1.1})
	assert.False(t, hasSL)
}

func TestEvaluateSameBarTieResolvesToStopLoss(t *testing.T) {
	t.Parallel()
	r := ExitRule{TakeProfitPips: 10, StopLossPips: StopLoss(10), CostPips: 2}
	bar := Bar{Open: 1.1000, High: 1.1020, Low: 1.0980, Close: 1.1000}

	out := r.Evaluate(Position{Direction: DirectionLong, EntryPrice: 1.1}, bar)
	require.NotNil(t, out)
	assert.Equal(t, ExitStopLoss, out.Reason)
	assert.InDelta(t, 1.0990, out.ExitPrice, 1e-9)
	assert.InDelta(t, -12, out.Pips, 1e-9)

	out = r.Evaluate(Position{Direction: DirectionShort, EntryPrice: 1.1}, bar)
	require.NotNil(t, out)
	assert.Equal(t, ExitStopLoss, out.Reason)
	assert.InDelta(t, 1.1010, out.ExitPrice, 1e-9)
}

func TestEvaluateTakeProfit(t *testing.T) {
	t.Parallel()
	r := ExitRule{TakeProfitPips: 10, StopLossPips: StopLoss(30), CostPips: 2}

	out := r.Evaluate(Position{Direction: DirectionShort, EntryPrice: 1.1}, Bar{Open: 1.1, High: 1.1005, Low: 1.0985, Close: 1.0990})
	require.NotNil(t, out)
	assert.Equal(t, ExitTakeProfit, out.Reason)
	assert.InDelta(t, 8, out.Pips, 1e-9)
	assert.InDelta(t, 1.0990, out.ExitPrice, 1e-9)
}

func TestEvaluateWithoutStopLossNeverStopsOut(t *testing.T) {
	t.Parallel()
	r := ExitRule{TakeProfitPips: 10, CostPips: 2}
	out := r.Evaluate(Position{Direction: DirectionLong, EntryPrice: 1.1}, Bar{Open: 1.1, High: 1.1005, Low: 1.0500, Close: 1.06})
	assert.Nil(t, out)
}

func TestEvaluateFlatPosition(t *testing.T) {
	t.Parallel()
	r := ExitRule{TakeProfitPips: 10, StopLossPips: StopLoss(10)}
	assert.Nil(t, r.Evaluate(Position{Direction: DirectionFlat, EntryPrice: 1.1}, Bar{Open: 1.1, High: 2, Low: 0.5, Close: 1}))
}

func TestCloseAtUsesSignedDifference(t *testing.T) {
	t.Parallel()
	r := ExitRule{TakeProfitPips: 10, CostPips: 2}

	out := r.CloseAt(Position{Direction: DirectionLong, EntryPrice: 1.1000}, 1.1005)
	assert.Equal(t, ExitEndOfDay, out.Reason)
	assert.InDelta(t, 3, out.Pips, 1e-6)

	out = r.CloseAt(Position{Direction: DirectionShort, EntryPrice: 1.1000}, 1.1005)
	assert.InDelta(t, -7, out.Pips, 1e-6)
	assert.InDelta(t, 1.1005, out.ExitPrice, 1e-12)
}

func TestPipConversion(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 15, PriceToPips(0.0015), 1e-9)
	assert.InDelta(t, 0.0025, PipsToPrice(25), 1e-12)
}
