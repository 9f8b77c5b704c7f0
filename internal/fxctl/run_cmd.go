package fxctl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"fxopen/backtest"
	"fxopen/internal/terminalui"
	"fxopen/store"
	"fxopen/strategy"
)

var outputFlags = []cli.Flag{
	&cli.StringFlag{Name: "out-dir", Aliases: []string{"o"}, Usage: "write trades.csv, equity.csv and report.json here"},
	&cli.BoolFlag{Name: "chart", Usage: "also write trades.svg and equity.svg (needs --out-dir)"},
	&cli.IntFlag{Name: "trades", Value: 20, Usage: "print the last N trades, 0 for none"},
	&cli.BoolFlag{Name: "save", Usage: "archive the run in the SQLite store"},
	&cli.BoolFlag{Name: "no-color", Usage: "disable ANSI colours"},
}

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "single-session backtest, one entry per bar at the daily open",
	Flags:  flags(dataFlags, paramFlags, outputFlags),
	Action: runSingle,
}

var dualCommand = &cli.Command{
	Name:   "dual",
	Usage:  "dual-session backtest, EUR open then US open on the same bar",
	Flags:  flags(dataFlags, paramFlags, outputFlags),
	Action: runDual,
}

// outcome is a finished run on its way to the terminal, files and store.
type outcome struct {
	kind     store.Kind
	name     string
	source   string
	cfg      backtest.RunConfig
	bars     []backtest.Bar
	res      backtest.Result
	summary  backtest.Summary
	sessions *backtest.SessionReport
}

func runSingle(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	bars, source, err := e.loadBars(c)
	if err != nil {
		return err
	}
	rc, spec, err := e.runParams(c)
	if err != nil {
		return err
	}
	p, err := strategy.FromSpec(spec)
	if err != nil {
		return usageError{err}
	}

	res, err := backtest.Run(bars, p.Signals(bars), rc)
	if err != nil {
		return err
	}
	return e.finish(c, outcome{
		kind:    store.KindSingle,
		name:    p.Name(),
		source:  source,
		cfg:     rc,
		bars:    bars,
		res:     res,
		summary: backtest.Summarize(res.Trades, res.EquityCurve, res.InitialEquity, pipValue(rc)),
	})
}

func runDual(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	bars, source, err := e.loadBars(c)
	if err != nil {
		return err
	}
	rc, spec, err := e.runParams(c)
	if err != nil {
		return err
	}
	trend, err := strategy.FromSpec(spec)
	if err != nil {
		return usageError{err}
	}
	p := strategy.DualMarketOpen{Trend: trend}

	res, err := backtest.RunDual(bars, p.SessionSignals(bars), rc)
	if err != nil {
		return err
	}
	sessions := backtest.AnalyzeSessions(res)
	return e.finish(c, outcome{
		kind:     store.KindDual,
		name:     p.Name(),
		source:   source,
		cfg:      rc,
		bars:     bars,
		res:      res,
		summary:  backtest.Summarize(res.Trades, res.EquityCurve, res.InitialEquity, pipValue(rc)),
		sessions: &sessions,
	})
}

func (e *env) finish(c *cli.Context, o outcome) error {
	for _, w := range o.res.Warnings {
		e.logger.Warn("backtest warning", zap.String("run", o.name), zap.String("warning", w))
	}
	dd := backtest.DrawdownPeriods(o.res.EquityCurve, o.res.InitialEquity, pipValue(o.cfg))

	terminalui.Render(c.App.Writer, terminalui.Report{
		Title:     fmt.Sprintf("EURUSD %s  %s  %d bars", o.kind, o.name, len(o.bars)),
		Summary:   o.summary,
		Trades:    o.res.Trades,
		Sessions:  o.sessions,
		Drawdown:  &dd,
		Warnings:  o.res.Warnings,
		Color:     !c.Bool("no-color"),
		MaxTrades: c.Int("trades"),
	})

	if dir := c.String("out-dir"); dir != "" {
		if err := writeOutputs(dir, o, c.Bool("chart")); err != nil {
			return err
		}
		e.logger.Info("outputs written", zap.String("dir", dir))
	}

	if c.Bool("save") {
		id, err := e.save(c, o)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "archived as %s\n", id)
	}
	return nil
}

func (e *env) save(c *cli.Context, o outcome) (string, error) {
	st, err := store.Open(e.cfg.DBPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run := &store.Run{
		Kind: o.kind,
		Params: store.Params{
			Strategy: o.name,
			Config:   o.cfg,
			DataFile: o.source,
		},
		Summary:    o.summary,
		Sessions:   o.sessions,
		TradeCount: len(o.res.Trades),
		BarCount:   len(o.bars),
	}
	if err := st.Save(c.Context, run); err != nil {
		return "", err
	}
	e.logger.Info("run archived", zap.String("id", run.ID), zap.String("db", e.cfg.DBPath))
	return run.ID, nil
}

func writeOutputs(dir string, o outcome, charts bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var trades, equity, report bytes.Buffer
	if err := backtest.WriteTradesCSV(&trades, o.res.Trades); err != nil {
		return err
	}
	if err := backtest.WriteEquityCSV(&equity, o.res.EquityCurve, o.res.InitialEquity, pipValue(o.cfg)); err != nil {
		return err
	}
	if err := backtest.WriteResultJSON(&report, backtest.ResultReport{
		Config:   o.cfg,
		Summary:  o.summary,
		Sessions: o.sessions,
		Result:   o.res,
	}); err != nil {
		return err
	}
	files := map[string][]byte{
		"trades.csv":  trades.Bytes(),
		"equity.csv":  equity.Bytes(),
		"report.json": report.Bytes(),
	}

	if charts {
		title := "EURUSD " + o.name
		svg, err := backtest.RenderTradesSVG(title, o.bars, o.res.Trades, backtest.SVGChartOptions{})
		if err != nil {
			return fmt.Errorf("trades chart: %w", err)
		}
		files["trades.svg"] = svg
		if svg, err = backtest.RenderEquitySVG(title, o.res.EquityCurve, o.res.InitialEquity, backtest.SVGChartOptions{}); err != nil {
			return fmt.Errorf("equity chart: %w", err)
		}
		files["equity.svg"] = svg
	}

	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func pipValue(rc backtest.RunConfig) float64 {
	if rc.PipValue == 0 {
		return backtest.DefaultPipValue
	}
	return rc.PipValue
}
