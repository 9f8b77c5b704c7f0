package terminalui

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"fxopen/backtest"
	"fxopen/store"
)

const boxWidth = 74

var ansi = regexp.MustCompile("\033\\[[0-9;]*m")

// Report is one finished run as printed by the CLI.
type Report struct {
	Title    string
	Summary  backtest.Summary
	Trades   []backtest.Trade
	Sessions *backtest.SessionReport
	Drawdown *backtest.DrawdownReport
	Warnings []string

	// Color enables ANSI colours for pips and exit reasons.
	Color bool
	// MaxTrades caps the trade table, newest last. 0 prints none.
	MaxTrades int
}

func Render(w io.Writer, r Report) {
	p := printer{w: w, color: r.Color}

	p.top()
	p.row("  %s", r.Title)
	p.sep()
	renderSummary(&p, r.Summary)
	if r.Drawdown != nil {
		renderDrawdown(&p, *r.Drawdown)
	}

	if r.Sessions != nil {
		p.sep()
		p.row("  【Sessions】")
		p.thin()
		renderSessions(&p, *r.Sessions)
	}

	if r.MaxTrades > 0 && len(r.Trades) > 0 {
		p.sep()
		trades := r.Trades
		if len(trades) > r.MaxTrades {
			p.row("  【Trades】 last %d of %d", r.MaxTrades, len(trades))
			trades = trades[len(trades)-r.MaxTrades:]
		} else {
			p.row("  【Trades】")
		}
		p.row("  %-10s %-10s %-4s %-5s %9s %9s %-3s %8s", "entry", "exit", "ses", "dir", "in", "out", "why", "pips")
		p.thin()
		for _, t := range trades {
			p.row("  %-10s %-10s %-4s %-5s %9.5f %9.5f %s %s",
				day(t.Date), day(t.ExitDate), session(t.Session), t.Direction,
				t.EntryPrice, t.ExitPrice, p.reason(t.ExitReason), p.pips(t.Pips, 8))
		}
	}

	p.bottom()
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", msg)
	}
}

func renderSummary(p *printer, s backtest.Summary) {
	p.row("  trades %-8d long %-8d short %-8d", s.TotalTrades, s.LongTrades, s.ShortTrades)
	p.row("  total pips   %s   avg/trade %8.2f   avg/day %8.2f",
		p.pips(s.TotalPips, 9), s.AvgPipsPerTrade, s.AvgPipsPerDay)
	p.row("  win rate  %6.2f%%   avg win %8.2f   avg loss %8.2f   PF %s",
		s.WinRate, s.AvgWin, s.AvgLoss, s.ProfitFactor)
	p.row("  max DD %9.1f pips (%5.2f%%)   sharpe %6.3f   annualized %6.3f",
		s.MaxDrawdownPips, s.MaxDrawdownPct, s.Sharpe, s.SharpeAnnualized)
	p.row("  final equity %.2f", s.FinalEquity)
}

func renderDrawdown(p *printer, d backtest.DrawdownReport) {
	longest, open := 0, false
	for _, pd := range d.Periods {
		if n := pd.EndIndex - pd.StartIndex + 1; n > longest {
			longest = n
		}
		open = !pd.Recovered
	}
	status := "recovered"
	if open {
		status = "in drawdown"
	}
	p.row("  DD periods %-5d longest %-5d bars below peak %-5d at peak %-5d",
		len(d.Periods), longest, d.DaysInDrawdown, d.DaysAtPeak)
	if len(d.Periods) > 0 {
		p.row("  now %s", status)
	}
}

func renderSessions(p *printer, s backtest.SessionReport) {
	for _, st := range []backtest.SessionStats{s.EUR, s.US} {
		p.row("  %-4s trades %-6d pips %s   win rate %6.2f%%",
			session(st.Session), st.Trades, p.pips(st.Pips, 9), st.WinRate)
	}
	p.row("  days with 2 trades %d | 1 trade %d | none %d", s.DaysWithTwo, s.DaysWithOne, s.DaysWithoutTrade)
}

// RenderSweep prints ranked sweep rows. top <= 0 prints all of them.
func RenderSweep(w io.Writer, results []backtest.SweepResult, top int, color bool) {
	p := printer{w: w, color: color}
	p.top()
	p.row("  【Sweep】 %d combinations", len(results))
	p.sep()
	p.row("  %4s %6s %6s %5s %7s %9s %7s %8s %7s", "#", "tp", "sl", "cost", "trades", "pips", "win%", "PF", "sharpe")
	p.thin()
	if top > 0 && len(results) > top {
		results = results[:top]
	}
	for i, r := range results {
		sl := "-"
		if r.Config.StopLossPips != nil {
			sl = fmt.Sprintf("%.1f", *r.Config.StopLossPips)
		}
		p.row("  %4d %6.1f %6s %5.1f %7d %s %7.2f %8s %7.3f",
			i+1, r.Config.TakeProfitPips, sl, r.Config.CostPerTradePips, r.Trades,
			p.pips(r.Summary.TotalPips, 9), r.Summary.WinRate, r.Summary.ProfitFactor, r.Summary.Sharpe)
	}
	p.bottom()
}

// RenderRuns lists archived runs, newest first.
func RenderRuns(w io.Writer, runs []*store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no archived runs")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %-6s  %-24s  %6s  %9s\n", "id", "created", "kind", "strategy", "trades", "pips")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %-6s  %-24s  %6d  %9.1f\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind,
			truncateName(r.Params.Strategy, 24), r.TradeCount, r.Summary.TotalPips)
	}
}

type printer struct {
	w     io.Writer
	color bool
}

func (p *printer) top()    { fmt.Fprintln(p.w, "╔"+strings.Repeat("═", boxWidth)+"╗") }
func (p *printer) sep()    { fmt.Fprintln(p.w, "╠"+strings.Repeat("═", boxWidth)+"╣") }
func (p *printer) thin()   { fmt.Fprintln(p.w, "╟"+strings.Repeat("─", boxWidth)+"╢") }
func (p *printer) bottom() { fmt.Fprintln(p.w, "╚"+strings.Repeat("═", boxWidth)+"╝") }

// row pads the visible text to the box width; ANSI codes take no room.
func (p *printer) row(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if n := visibleWidth(s); n < boxWidth {
		s += strings.Repeat(" ", boxWidth-n)
	}
	fmt.Fprintln(p.w, "║"+s+"║")
}

func (p *printer) pips(v float64, width int) string {
	s := fmt.Sprintf("%+*.1f", width, v)
	if !p.color {
		return s
	}
	return colorByPips(v) + s + "\033[0m"
}

func (p *printer) reason(r backtest.ExitReason) string {
	s := fmt.Sprintf("%-3s", r)
	if !p.color {
		return s
	}
	switch r {
	case backtest.ExitTakeProfit:
		return "\033[32m" + s + "\033[0m"
	case backtest.ExitStopLoss:
		return "\033[31m" + s + "\033[0m"
	}
	return s
}

func colorByPips(v float64) string {
	if v > 0 {
		return "\033[32m"
	}
	if v < 0 {
		return "\033[31m"
	}
	return "\033[37m"
}

// visibleWidth counts CJK runes as two columns.
func visibleWidth(s string) int {
	s = ansi.ReplaceAllString(s, "")
	n := 0
	for _, r := range s {
		if r >= 0x2E80 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func truncateName(name string, maxLen int) string {
	if utf8.RuneCountInString(name) <= maxLen {
		return name
	}
	return string([]rune(name)[:maxLen])
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func session(s backtest.Session) string {
	if s == backtest.SessionNone {
		return "-"
	}
	return string(s)
}
