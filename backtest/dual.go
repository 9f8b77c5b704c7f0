package backtest

import (
	"fmt"
	"math"
)

// RunDual replays bars with two entry opportunities per bar: the EUR open,
// then the US open. Only one position may be open at a time, so a US
// entry is taken only after the EUR position (if any) has already exited.
// Every position still open after the US step is closed at the bar close.
func RunDual(bars []Bar, signals []SessionSignal, cfg RunConfig) (Result, error) {
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

	unpriced := map[Session]int{}
	bk := newBook(cfg, len(bars))
	for i, bar := range bars {
		sig := sessionSignalAt(signals, i)

		bk.sessionEntry(i, bar, sig.EUR, SessionEUR, unpriced)
		bk.checkExit(i, bar)

		bk.sessionEntry(i, bar, sig.US, SessionUS, unpriced)
		bk.checkExit(i, bar)

		bk.closeEOD(i, bar)
		bk.eq.Mark(i, bar.Date)
	}

	for _, s := range [...]Session{SessionEUR, SessionUS} {
		if n := unpriced[s]; n > 0 {
			warnings = append(warnings, fmt.Sprintf("%d %s entries skipped: no reference open price", n, s))
		}
	}
	return bk.result(warnings), nil
}

// sessionEntry opens a position for one session when the book is flat.
func (b *book) sessionEntry(i int, bar Bar, e SessionEntry, s Session, unpriced map[Session]int) {
	if !b.flat() || !e.Direction.IsDirectional() {
		return
	}
	if e.OpenPrice == nil || math.IsNaN(*e.OpenPrice) || math.IsInf(*e.OpenPrice, 0) {
		unpriced[s]++
		return
	}
	b.open(i, bar, e.Direction, *e.OpenPrice, s)
}

func sessionSignalAt(signals []SessionSignal, i int) SessionSignal {
	if i < len(signals) {
		return signals[i]
	}
	flat := SessionEntry{Direction: DirectionFlat}
	return SessionSignal{EUR: flat, US: flat}
}
