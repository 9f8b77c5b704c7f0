package backtest

import "time"

// EquityTracker converts realized pips into account equity at a fixed
// value per pip and records one point per bar.
type EquityTracker struct {
	pipValue float64
	initial  float64
	equity   float64
	curve    EquityCurve
}

func NewEquityTracker(initial, pipValue float64, bars int) *EquityTracker {
	return &EquityTracker{
		pipValue: pipValue,
		initial:  initial,
		equity:   initial,
		curve:    make(EquityCurve, 0, bars),
	}
}

func (t *EquityTracker) Apply(pips float64) {
	t.equity += pips * t.pipValue
}

func (t *EquityTracker) Equity() float64 { return t.equity }

func (t *EquityTracker) Initial() float64 { return t.initial }

// Mark appends the current equity for bar i.
func (t *EquityTracker) Mark(i int, date time.Time) {
	t.curve = append(t.curve, EquityPoint{BarIndex: i, Date: date, Equity: t.equity})
}

func (t *EquityTracker) Curve() EquityCurve { return t.curve }

type DrawdownPoint struct {
	BarIndex     int       `json:"bar_index"`
	Date         time.Time `json:"date"`
	Equity       float64   `json:"equity"`
	Peak         float64   `json:"peak"`
	Drawdown     float64   `json:"drawdown"`
	DrawdownPips float64   `json:"drawdown_pips"`
	DrawdownPct  float64   `json:"drawdown_pct"`
}

// Drawdowns derives the running-maximum drawdown of every point. The
// running maximum starts at initial, the equity before the first bar, so a
// loss on bar 0 is a drawdown. Drawdown is always <= 0; the percentage is 0
// when the peak is not positive.
func Drawdowns(curve EquityCurve, initial, pipValue float64) []DrawdownPoint {
	out := make([]DrawdownPoint, len(curve))
	peak := initial
	for i, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := p.Equity - peak
		out[i] = DrawdownPoint{
			BarIndex:     p.BarIndex,
			Date:         p.Date,
			Equity:       p.Equity,
			Peak:         peak,
			Drawdown:     dd,
			DrawdownPips: dd / pipValue,
			DrawdownPct:  pctOf(dd, peak),
		}
	}
	return out
}

// MaxDrawdown returns the deepest drawdown as positive pips and percent of
// the peak at that point.
func MaxDrawdown(curve EquityCurve, initial, pipValue float64) (pips, pct float64) {
	worst := -1
	var worstDD, worstPeak float64
	for i, d := range Drawdowns(curve, initial, pipValue) {
		if d.Drawdown < worstDD {
			worst, worstDD, worstPeak = i, d.Drawdown, d.Peak
		}
	}
	if worst < 0 {
		return 0, 0
	}
	return -worstDD / pipValue, -pctOf(worstDD, worstPeak)
}

func pctOf(dd, peak float64) float64 {
	if peak <= 0 || dd == 0 {
		return 0
	}
	return dd / peak * 100
}

type DrawdownPeriod struct {
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	DepthPips  float64   `json:"depth_pips"`
	Recovered  bool      `json:"recovered"`
}

type DrawdownReport struct {
	Periods        []DrawdownPeriod `json:"periods"`
	DaysInDrawdown int              `json:"days_in_drawdown"`
	DaysAtPeak     int              `json:"days_at_peak"`
}

// DrawdownPeriods groups consecutive below-peak points. A period still
// below the peak at the end of the curve is reported unrecovered.
func DrawdownPeriods(curve EquityCurve, initial, pipValue float64) DrawdownReport {
	var rep DrawdownReport
	var cur *DrawdownPeriod
	for _, d := range Drawdowns(curve, initial, pipValue) {
		if d.Drawdown < 0 {
			rep.DaysInDrawdown++
			if cur == nil {
				cur = &DrawdownPeriod{StartIndex: d.BarIndex, StartDate: d.Date}
			}
			cur.EndIndex, cur.EndDate = d.BarIndex, d.Date
			if -d.DrawdownPips > cur.DepthPips {
				cur.DepthPips = -d.DrawdownPips
			}
			continue
		}
		rep.DaysAtPeak++
		if cur != nil {
			cur.Recovered = true
			rep.Periods = append(rep.Periods, *cur)
			cur = nil
		}
	}
	if cur != nil {
		rep.Periods = append(rep.Periods, *cur)
	}
	return rep
}
