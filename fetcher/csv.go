package fetcher

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"fxopen/backtest"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// LoadStats counts what the loader kept and dropped.
type LoadStats struct {
	Rows       int `json:"rows"`
	Kept       int `json:"kept"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`
}

var dateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02", "Jan 02, 2006", "2006/01/02"}

// LoadDailyCSVFile opens path and parses it with LoadDailyCSV.
func LoadDailyCSVFile(path string) ([]backtest.Bar, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return LoadDailyCSV(f)
}

// LoadDailyCSV parses a daily OHLC export. The header must name Date,
// Open, High, Low and either Price or Close; extra columns are ignored.
// Rows that fail to parse or have High < Low are dropped. The result is
// sorted oldest first with duplicate dates removed.
func LoadDailyCSV(r io.Reader) ([]backtest.Bar, LoadStats, error) {
	var stats LoadStats

	// BOMOverride switches to UTF-16 when a BOM says so.
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, stats, err
	}

	var bars []backtest.Bar
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read csv row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++
		b, ok := parseRow(rec, cols)
		if !ok {
			stats.Dropped++
			continue
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && b.Date.Equal(out[len(out)-1].Date) {
			stats.Duplicates++
			continue
		}
		out = append(out, b)
	}
	stats.Kept = len(out)
	return out, stats, nil
}

type columns struct {
	date, open, high, low, close int
}

func mapColumns(header []string) (columns, error) {
	c := columns{-1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`)) {
		case "date":
			c.date = i
		case "open":
			c.open = i
		case "high":
			c.high = i
		case "low":
			c.low = i
		case "price", "close":
			if c.close < 0 {
				c.close = i
			}
		}
	}
	for name, idx := range map[string]int{"date": c.date, "open": c.open, "high": c.high, "low": c.low, "price/close": c.close} {
		if idx < 0 {
			return c, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return c, nil
}

func parseRow(rec []string, c columns) (backtest.Bar, bool) {
	get := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	d, err := parseDate(get(c.date))
	if err != nil {
		return backtest.Bar{}, false
	}
	var vals [4]float64
	for k, idx := range [...]int{c.open, c.high, c.low, c.close} {
		v, err := parseNumber(get(idx))
		if err != nil || v <= 0 {
			return backtest.Bar{}, false
		}
		vals[k] = v
	}
	b := backtest.Bar{Date: d, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
	if b.High < b.Low {
		return backtest.Bar{}, false
	}
	return b, true
}

func parseDate(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseNumber(s string) (float64, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
