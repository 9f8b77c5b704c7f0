package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
)

type SVGChartOptions struct {
	Width  int
	Height int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 520
	}
	return o
}

const (
	svgBG   = "#0b1220"
	svgGrid = "rgba(255,255,255,0.08)"
	svgUp   = "#22c55e"
	svgDown = "#ef4444"
	svgText = "rgba(255,255,255,0.85)"
	svgFont = "ui-monospace, Menlo, Monaco, Consolas, monospace"
)

// svgPlot maps n evenly spaced slots and a value range onto the plot area.
type svgPlot struct {
	buf                      bytes.Buffer
	left, top, width, height float64
	lo, hi                   float64
	step                     float64
}

func newSVGPlot(opt SVGChartOptions, n int, lo, hi float64) (*svgPlot, error) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || hi < lo {
		return nil, fmt.Errorf("invalid value range")
	}
	pad := (hi - lo) * 0.05
	if pad <= 0 {
		pad = math.Max(math.Abs(lo)*0.02, 1e-4)
	}
	p := &svgPlot{
		left:   70,
		top:    24,
		width:  float64(opt.Width) - 70 - 20,
		height: float64(opt.Height) - 24 - 40,
		lo:     lo - pad,
		hi:     hi + pad,
	}
	if p.width <= 10 || p.height <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}
	p.step = p.width / float64(n)

	w, h := strconv.Itoa(opt.Width), strconv.Itoa(opt.Height)
	p.buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	p.buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + w + `" height="` + h + `" viewBox="0 0 ` + w + ` ` + h + `">` + "\n")
	p.buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + svgBG + `"/>` + "\n")
	return p, nil
}

func (p *svgPlot) y(v float64) float64 {
	r := (v - p.lo) / (p.hi - p.lo)
	r = math.Max(0, math.Min(1, r))
	return p.top + (1-r)*p.height
}

func (p *svgPlot) x(i int) float64 {
	return p.left + (float64(i)+0.5)*p.step
}

func (p *svgPlot) text(x, y float64, size int, col, s string) {
	p.buf.WriteString(`<text x="` + fmtFloat(x) + `" y="` + fmtFloat(y) + `" fill="` + col + `" font-size="` + strconv.Itoa(size) +
		`" font-family="` + svgFont + `">` + html.EscapeString(s) + `</text>` + "\n")
}

func (p *svgPlot) line(x1, y1, x2, y2 float64, col string, width float64, dash bool) {
	style := ""
	if dash {
		style = ` stroke-dasharray="6 6"`
	}
	p.buf.WriteString(`<line x1="` + fmtFloat(x1) + `" y1="` + fmtFloat(y1) + `" x2="` + fmtFloat(x2) + `" y2="` + fmtFloat(y2) +
		`" stroke="` + col + `" stroke-width="` + fmtFloat(width) + `"` + style + `/>` + "\n")
}

// axes draws the title, five horizontal grid lines and the date footer.
func (p *svgPlot) axes(title, first, last string, label func(float64) string) {
	if strings.TrimSpace(title) == "" {
		title = "EURUSD"
	}
	p.text(p.left, 16, 14, svgText, title+"  "+first+" ~ "+last)
	for k := 0; k <= 5; k++ {
		y := p.top + (float64(k)/5)*p.height
		p.line(p.left, y, p.left+p.width, y, svgGrid, 1, false)
		p.text(6, y+4, 12, svgText, label(p.hi-(float64(k)/5)*(p.hi-p.lo)))
	}
	footY := p.top + p.height + 40 - 12
	p.text(p.left, footY, 12, svgText, first)
	p.text(p.left+p.width-70, footY, 12, svgText, last)
}

func (p *svgPlot) bytes() []byte {
	p.buf.WriteString(`</svg>` + "\n")
	return p.buf.Bytes()
}

// RenderTradesSVG draws daily candles with a marker at every entry and
// exit. Exits are coloured by reason.
func RenderTradesSVG(title string, bars []Bar, trades []Trade, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if len(bars) < 2 {
		return nil, fmt.Errorf("not enough bars: %d", len(bars))
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	for _, t := range trades {
		lo = math.Min(lo, math.Min(t.EntryPrice, t.ExitPrice))
		hi = math.Max(hi, math.Max(t.EntryPrice, t.ExitPrice))
	}
	p, err := newSVGPlot(opt, len(bars), lo, hi)
	if err != nil {
		return nil, err
	}
	p.axes(title, fmtDate(bars[0]), fmtDate(bars[len(bars)-1]), fmtPrice)

	cw := math.Max(1, p.step*0.65)
	for i, b := range bars {
		col := svgUp
		if b.Close < b.Open {
			col = svgDown
		}
		x := p.x(i)
		p.line(x, p.y(b.High), x, p.y(b.Low), col, 1, false)
		top := math.Min(p.y(b.Open), p.y(b.Close))
		bot := math.Max(p.y(b.Open), p.y(b.Close))
		if bot-top < 1 {
			bot = top + 1
		}
		p.buf.WriteString(`<rect x="` + fmtFloat(x-cw/2) + `" y="` + fmtFloat(top) + `" width="` + fmtFloat(cw) +
			`" height="` + fmtFloat(bot-top) + `" fill="` + col + `" opacity="0.9"/>` + "\n")
	}

	for _, t := range trades {
		if t.EntryIndex < 0 || t.EntryIndex >= len(bars) || t.ExitIndex < 0 || t.ExitIndex >= len(bars) {
			continue
		}
		ex, ey := p.x(t.EntryIndex), p.y(t.EntryPrice)
		xx, xy := p.x(t.ExitIndex), p.y(t.ExitPrice)
		p.line(ex, ey, xx, xy, "rgba(255,255,255,0.45)", 1, true)
		p.buf.WriteString(`<circle cx="` + fmtFloat(ex) + `" cy="` + fmtFloat(ey) + `" r="3.5" fill="#38bdf8" />` + "\n")
		p.buf.WriteString(`<circle cx="` + fmtFloat(xx) + `" cy="` + fmtFloat(xy) + `" r="3.5" fill="` + exitColor(t.ExitReason) + `" />` + "\n")
		label := string(t.ExitReason)
		if t.Session != SessionNone {
			label = string(t.Session) + " " + label
		}
		p.text(xx+6, xy-6, 11, exitColor(t.ExitReason), label)
	}
	return p.bytes(), nil
}

// RenderEquitySVG draws the equity curve with its running peak and
// shades the drawdown between them. The peak starts at initial.
func RenderEquitySVG(title string, curve EquityCurve, initial float64, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if len(curve) < 2 {
		return nil, fmt.Errorf("not enough points: %d", len(curve))
	}
	lo, hi := math.Inf(1), initial
	for _, pt := range curve {
		lo = math.Min(lo, pt.Equity)
		hi = math.Max(hi, pt.Equity)
	}
	p, err := newSVGPlot(opt, len(curve), lo, hi)
	if err != nil {
		return nil, err
	}
	first, last := curve[0].Date.Format("2006-01-02"), curve[len(curve)-1].Date.Format("2006-01-02")
	p.axes(title, first, last, func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) })

	var eq, peak, shade strings.Builder
	dd := Drawdowns(curve, initial, 1)
	for i, d := range dd {
		sep := " "
		if i == 0 {
			sep = ""
		}
		eq.WriteString(sep + fmtFloat(p.x(i)) + "," + fmtFloat(p.y(d.Equity)))
		peak.WriteString(sep + fmtFloat(p.x(i)) + "," + fmtFloat(p.y(d.Peak)))
	}
	shade.WriteString(peak.String())
	for i := len(dd) - 1; i >= 0; i-- {
		shade.WriteString(" " + fmtFloat(p.x(i)) + "," + fmtFloat(p.y(dd[i].Equity)))
	}
	p.buf.WriteString(`<polygon points="` + shade.String() + `" fill="` + svgDown + `" opacity="0.25"/>` + "\n")
	p.buf.WriteString(`<polyline points="` + peak.String() + `" fill="none" stroke="rgba(255,255,255,0.35)" stroke-width="1" stroke-dasharray="6 6"/>` + "\n")
	p.buf.WriteString(`<polyline points="` + eq.String() + `" fill="none" stroke="#38bdf8" stroke-width="1.6"/>` + "\n")
	return p.bytes(), nil
}

func exitColor(r ExitReason) string {
	switch r {
	case ExitTakeProfit:
		return svgUp
	case ExitStopLoss:
		return svgDown
	default:
		return "#facc15"
	}
}

func fmtDate(b Bar) string {
	if b.Date.IsZero() {
		return "-"
	}
	return b.Date.Format("2006-01-02")
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 5, 64)
}
