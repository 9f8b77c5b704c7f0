package backtest

import "time"

type Direction string

const (
	DirectionFlat  Direction = "flat"
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// IsDirectional reports whether d opens a position.
func (d Direction) IsDirectional() bool {
	return d == DirectionLong || d == DirectionShort
}

// sign is +1 for long and -1 for short.
func (d Direction) sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

type ExitReason string

const (
	ExitTakeProfit ExitReason = "TP"
	ExitStopLoss   ExitReason = "SL"
	ExitEndOfDay   ExitReason = "EOD"
)

type Session string

const (
	SessionNone Session = ""
	SessionEUR  Session = "EUR"
	SessionUS   Session = "US"
)

type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Signal is the single-session instruction for one bar.
type Signal struct {
	Direction Direction `json:"direction"`
}

// SessionEntry is one session's instruction. OpenPrice is nil when the
// reference price is unknown, which is not the same as a flat signal.
type SessionEntry struct {
	Direction Direction `json:"direction"`
	OpenPrice *float64  `json:"open_price,omitempty"`
}

// SessionSignal carries both intraday session entries for one bar.
type SessionSignal struct {
	EUR SessionEntry `json:"eur"`
	US  SessionEntry `json:"us"`
}

type Position struct {
	Direction  Direction
	EntryPrice float64
	EntryDate  time.Time
	EntryIndex int
	Session    Session
}

type Trade struct {
	Date       time.Time  `json:"date"`
	ExitDate   time.Time  `json:"exit_date"`
	EntryIndex int        `json:"entry_index"`
	ExitIndex  int        `json:"exit_index"`
	Direction  Direction  `json:"direction"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	ExitReason ExitReason `json:"exit_reason"`
	Pips       float64    `json:"pips"`
	TPHit      bool       `json:"tp_hit"`
	Session    Session    `json:"session,omitempty"`
}

type EquityPoint struct {
	BarIndex int       `json:"bar_index"`
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
}

type EquityCurve []EquityPoint

// Values returns the bare equity series.
func (c EquityCurve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Equity
	}
	return out
}

// Result is a finished run. InitialEquity is the balance before the first
// bar and seeds the drawdown peak.
type Result struct {
	Trades        []Trade     `json:"trades"`
	InitialEquity float64     `json:"initial_equity"`
	EquityCurve   EquityCurve `json:"equity_curve"`
	Warnings      []string    `json:"warnings,omitempty"`
}
