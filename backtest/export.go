package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var tradeCSVHeader = []string{
	"entry_date", "exit_date", "session", "direction", "entry_price", "exit_price", "exit_reason", "pips", "tp_hit",
}

// WriteTradesCSV writes one row per trade. Prices carry 5 decimals and
// pips 1, rounded half away from zero.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			csvDate(t.Date),
			csvDate(t.ExitDate),
			string(t.Session),
			string(t.Direction),
			decimal.NewFromFloat(t.EntryPrice).StringFixed(5),
			decimal.NewFromFloat(t.ExitPrice).StringFixed(5),
			string(t.ExitReason),
			decimal.NewFromFloat(t.Pips).StringFixed(1),
			strconv.FormatBool(t.TPHit),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the curve together with its drawdown columns.
func WriteEquityCSV(w io.Writer, curve EquityCurve, initial, pipValue float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bar", "date", "equity", "peak", "drawdown", "drawdown_pips", "drawdown_pct"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, d := range Drawdowns(curve, initial, pipValue) {
		row := []string{
			strconv.Itoa(d.BarIndex),
			csvDate(d.Date),
			decimal.NewFromFloat(d.Equity).StringFixed(2),
			decimal.NewFromFloat(d.Peak).StringFixed(2),
			decimal.NewFromFloat(d.Drawdown).StringFixed(2),
			decimal.NewFromFloat(d.DrawdownPips).StringFixed(1),
			decimal.NewFromFloat(d.DrawdownPct).StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type ResultReport struct {
	Config   RunConfig      `json:"config"`
	Summary  Summary        `json:"summary"`
	Sessions *SessionReport `json:"sessions,omitempty"`
	Result
}

func WriteResultJSON(w io.Writer, rep ResultReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func csvDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}
