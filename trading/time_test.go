package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fxopen/backtest"
)

func TestSessionOpenTimes(t *testing.T) {
	t.Parallel()
	d := time.Date(2024, 3, 5, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), EUROpenTime(d))
	assert.Equal(t, time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC), USOpenTime(d))
	assert.Equal(t, time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC), CandleStart(d))
}

func TestIsMarketOpenTime(t *testing.T) {
	t.Parallel()
	at := func(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, time.UTC) }

	assert.True(t, IsMarketOpenTime(at(8, 0), MarketEUR))
	assert.True(t, IsMarketOpenTime(at(8, 59), MarketEUR))
	assert.False(t, IsMarketOpenTime(at(9, 0), MarketEUR))
	assert.False(t, IsMarketOpenTime(at(8, 30), MarketUS))
	assert.True(t, IsMarketOpenTime(at(13, 10), MarketUS))
	assert.True(t, IsMarketOpenTime(at(13, 10), MarketBoth))
	assert.True(t, IsMarketOpenTime(at(8, 10), MarketBoth))
	assert.False(t, IsMarketOpenTime(at(13, 10), Market("asia")))

	// 09:30 in UTC+1 is 08:30 UTC.
	cet := time.FixedZone("CET", 3600)
	assert.True(t, IsMarketOpenTime(time.Date(2024, 3, 5, 9, 30, 0, 0, cet), MarketEUR))
}

func TestApproximateOpens(t *testing.T) {
	t.Parallel()
	bar := backtest.Bar{Open: 1.1000, High: 1.1050, Low: 1.0950, Close: 1.1100}
	assert.InDelta(t, 1.1000, ApproximateEUROpen(bar), 1e-12)
	assert.InDelta(t, 1.1030, ApproximateUSOpen(bar), 1e-12)

	bar.Close = 1.0900
	assert.InDelta(t, 1.0970, ApproximateUSOpen(bar), 1e-12)
}

func TestNextSessionOpen(t *testing.T) {
	t.Parallel()
	// Tuesday 10:00 -> US open the same day.
	m, at := NextSessionOpen(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, MarketUS, m)
	assert.Equal(t, time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC), at)

	// Friday 14:00 -> Monday EUR open.
	m, at = NextSessionOpen(time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, MarketEUR, m)
	assert.Equal(t, time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC), at)
}

func TestIsInTimeRangesAcrossMidnight(t *testing.T) {
	t.Parallel()
	r := []TimeRange{{CandleOpenHour, 0, 1, 0}}
	assert.True(t, isInTimeRanges(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), r))
	assert.True(t, isInTimeRanges(time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC), r))
	assert.False(t, isInTimeRanges(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), r))
}
