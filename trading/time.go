package trading

import (
	"time"

	"fxopen/backtest"
)

// Market selects one or both intraday session opens.
type Market string

const (
	MarketEUR  Market = "eur"
	MarketUS   Market = "us"
	MarketBoth Market = "both"
)

const (
	// EUROpenHour is the London session open in UTC.
	EUROpenHour = 8
	// USOpenHour is the New York session open in UTC. The summer shift to
	// 12:00 is not modelled.
	USOpenHour = 13
	// CandleOpenHour is when a daily FX candle starts, on the previous
	// calendar day.
	CandleOpenHour = 22

	// usOpenFraction is how far into the daily candle the US open falls.
	usOpenFraction = 0.3
)

// TimeRange is a UTC time-of-day window.
type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

var (
	eurOpenWindow = TimeRange{EUROpenHour, 0, EUROpenHour, 59}
	usOpenWindow  = TimeRange{USOpenHour, 0, USOpenHour, 59}
)

func sessionAt(date time.Time, hour int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

// EUROpenTime returns 08:00 UTC on the calendar day of date.
func EUROpenTime(date time.Time) time.Time { return sessionAt(date, EUROpenHour) }

// USOpenTime returns 13:00 UTC on the calendar day of date.
func USOpenTime(date time.Time) time.Time { return sessionAt(date, USOpenHour) }

// CandleStart returns the 22:00 UTC start of the daily candle labelled date.
func CandleStart(date time.Time) time.Time {
	return sessionAt(date, CandleOpenHour).AddDate(0, 0, -1)
}

// IsMarketOpenTime reports whether t falls inside the first hour after
// the selected session open. t is evaluated in UTC.
func IsMarketOpenTime(t time.Time, m Market) bool {
	t = t.UTC()
	switch m {
	case MarketEUR:
		return isInTimeRanges(t, []TimeRange{eurOpenWindow})
	case MarketUS:
		return isInTimeRanges(t, []TimeRange{usOpenWindow})
	case MarketBoth:
		return isInTimeRanges(t, []TimeRange{eurOpenWindow, usOpenWindow})
	default:
		return false
	}
}

// IsMarketOpenNow reports whether now falls in a session open window.
func IsMarketOpenNow(m Market) bool {
	return IsMarketOpenTime(time.Now(), m)
}

// ApproximateEUROpen uses the daily open, which is the price at 22:00 UTC
// on the previous day and the closest OHLC value to the London open.
func ApproximateEUROpen(bar backtest.Bar) float64 {
	return bar.Open
}

// ApproximateUSOpen interpolates 30% of the way from open to close.
func ApproximateUSOpen(bar backtest.Bar) float64 {
	return bar.Open + (bar.Close-bar.Open)*usOpenFraction
}

// NextSessionOpen returns the first session open strictly after t,
// skipping Saturdays and Sundays.
func NextSessionOpen(t time.Time) (Market, time.Time) {
	t = t.UTC()
	for day := 0; day < 8; day++ {
		d := t.AddDate(0, 0, day)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if eur := EUROpenTime(d); eur.After(t) {
			return MarketEUR, eur
		}
		if us := USOpenTime(d); us.After(t) {
			return MarketUS, us
		}
	}
	return MarketEUR, EUROpenTime(t.AddDate(0, 0, 1))
}

// isInTimeRanges reports whether t falls in any of ranges.
func isInTimeRanges(t time.Time, ranges []TimeRange) bool {
	currentMinutes := t.Hour()*60 + t.Minute()

	for _, r := range ranges {
		startMinutes := r.StartHour*60 + r.StartMinute
		endMinutes := r.EndHour*60 + r.EndMinute

		// window wraps midnight
		if startMinutes <= endMinutes {
			if currentMinutes >= startMinutes && currentMinutes <= endMinutes {
				return true
			}
		} else if currentMinutes >= startMinutes || currentMinutes <= endMinutes {
			return true
		}
	}
	return false
}
