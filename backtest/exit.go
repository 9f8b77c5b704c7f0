package backtest

// ExitRule is shared by the single-session and dual-session engines.
// A nil StopLossPips disables the stop-loss branch entirely.
type ExitRule struct {
	TakeProfitPips float64
	StopLossPips   *float64
	CostPips       float64
}

type ExitOutcome struct {
	Reason    ExitReason
	ExitPrice float64
	Pips      float64
}

// Levels returns the take-profit and stop-loss prices for pos. hasSL is
// false when no stop-loss is configured.
func (r ExitRule) Levels(pos Position) (tp, sl float64, hasSL bool) {
	s := pos.Direction.sign()
	tp = pos.EntryPrice + s*PipsToPrice(r.TakeProfitPips)
	if r.StopLossPips != nil {
		sl = pos.EntryPrice - s*PipsToPrice(*r.StopLossPips)
		hasSL = true
	}
	return tp, sl, hasSL
}

// Evaluate decides whether bar triggers an exit for pos. Only OHLC is
// known, so a bar that reaches both levels resolves to the stop-loss.
// It returns nil when neither level is reached.
func (r ExitRule) Evaluate(pos Position, bar Bar) *ExitOutcome {
	if !pos.Direction.IsDirectional() {
		return nil
	}
	tp, sl, hasSL := r.Levels(pos)

	var slHit, tpHit bool
	if pos.Direction == DirectionLong {
		slHit = hasSL && bar.Low <= sl
		tpHit = bar.High >= tp
	} else {
		slHit = hasSL && bar.High >= sl
		tpHit = bar.Low <= tp
	}

	switch {
	case slHit:
		return &ExitOutcome{Reason: ExitStopLoss, ExitPrice: sl, Pips: -*r.StopLossPips - r.CostPips}
	case tpHit:
		return &ExitOutcome{Reason: ExitTakeProfit, ExitPrice: tp, Pips: r.TakeProfitPips - r.CostPips}
	default:
		return nil
	}
}

// CloseAt realizes pos at price as an end-of-day exit.
func (r ExitRule) CloseAt(pos Position, price float64) ExitOutcome {
	diff := (price - pos.EntryPrice) * pos.Direction.sign()
	return ExitOutcome{
		Reason:    ExitEndOfDay,
		ExitPrice: price,
		Pips:      PriceToPips(diff) - r.CostPips,
	}
}
