package backtest

import (
	"fmt"
)

// book is the mutable state of one run. Nothing in it outlives the call
// that created it.
type book struct {
	rule   ExitRule
	pos    *Position
	trades []Trade
	eq     *EquityTracker
}

func newBook(cfg RunConfig, bars int) *book {
	return &book{
		rule: cfg.exitRule(),
		eq:   NewEquityTracker(cfg.InitialEquity, cfg.PipValue, bars),
	}
}

func (b *book) flat() bool { return b.pos == nil }

func (b *book) open(i int, bar Bar, dir Direction, price float64, s Session) {
	b.pos = &Position{
		Direction:  dir,
		EntryPrice: price,
		EntryDate:  bar.Date,
		EntryIndex: i,
		Session:    s,
	}
}

// checkExit closes the open position if bar reaches TP or SL.
func (b *book) checkExit(i int, bar Bar) bool {
	if b.pos == nil {
		return false
	}
	out := b.rule.Evaluate(*b.pos, bar)
	if out == nil {
		return false
	}
	b.close(i, bar, *out)
	return true
}

func (b *book) closeEOD(i int, bar Bar) {
	if b.pos == nil {
		return
	}
	b.close(i, bar, b.rule.CloseAt(*b.pos, bar.Close))
}

func (b *book) close(i int, bar Bar, out ExitOutcome) {
	p := b.pos
	b.trades = append(b.trades, Trade{
		Date:       p.EntryDate,
		ExitDate:   bar.Date,
		EntryIndex: p.EntryIndex,
		ExitIndex:  i,
		Direction:  p.Direction,
		EntryPrice: p.EntryPrice,
		ExitPrice:  out.ExitPrice,
		ExitReason: out.Reason,
		Pips:       out.Pips,
		TPHit:      out.Reason == ExitTakeProfit,
		Session:    p.Session,
	})
	b.eq.Apply(out.Pips)
	b.pos = nil
}

func (b *book) result(warnings []string) Result {
	trades := b.trades
	if trades == nil {
		trades = []Trade{}
	}
	return Result{Trades: trades, InitialEquity: b.eq.Initial(), EquityCurve: b.eq.Curve(), Warnings: warnings}
}

// Run replays bars against one signal per bar. Entries fill at the bar
// open; a position opened on a bar is checked against that same bar.
func Run(bars []Bar, signals []Signal, cfg RunConfig) (Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := validateBars(bars); err != nil {
		return Result{}, err
	}

	var warnings []string
	if len(signals) != len(bars) {
		warnings = append(warnings, alignWarning(len(signals), len(bars)))
	}

	bk := newBook(cfg, len(bars))
	last := len(bars) - 1
	for i, bar := range bars {
		// Entry only when flat at the start of the bar.
		if !bk.flat() {
			bk.checkExit(i, bar)
		} else {
			if sig := signalAt(signals, i); sig.Direction.IsDirectional() {
				bk.open(i, bar, sig.Direction, bar.Open, SessionNone)
				bk.checkExit(i, bar)
			}
		}

		if cfg.Hold == HoldEOD || i == last {
			bk.closeEOD(i, bar)
		}
		bk.eq.Mark(i, bar.Date)
	}
	return bk.result(warnings), nil
}

func signalAt(signals []Signal, i int) Signal {
	if i < len(signals) {
		return signals[i]
	}
	return Signal{Direction: DirectionFlat}
}

func alignWarning(signals, bars int) string {
	if signals < bars {
		return fmt.Sprintf("signals cover %d of %d bars; the remaining %d bars are treated as flat",
			signals, bars, bars-signals)
	}
	return fmt.Sprintf("%d signals for %d bars; the surplus %d signals are ignored",
		signals, bars, signals-bars)
}
