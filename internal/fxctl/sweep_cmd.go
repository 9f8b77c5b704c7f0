package fxctl

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"fxopen/backtest"
	"fxopen/internal/terminalui"
	"fxopen/store"
	"fxopen/strategy"
)

var sweepCommand = &cli.Command{
	Name:  "sweep",
	Usage: "run the single-session backtest over a TP x SL x cost grid",
	Flags: flags(dataFlags, paramFlags, []cli.Flag{
		&cli.StringFlag{Name: "grid", Usage: "YAML file with take_profit_pips, stop_loss_pips and cost_pips lists"},
		&cli.StringFlag{Name: "tp-list", Usage: "comma separated take-profit values, e.g. 5,10,15"},
		&cli.StringFlag{Name: "sl-list", Usage: "comma separated stop-loss values, \"none\" for no stop-loss"},
		&cli.StringFlag{Name: "cost-list", Usage: "comma separated cost values"},
		&cli.StringFlag{Name: "rank", Value: string(backtest.RankTotalPips), Usage: "total_pips, profit_factor or sharpe"},
		&cli.IntFlag{Name: "top", Value: 10, Usage: "print the best N combinations, 0 for all"},
		&cli.IntFlag{Name: "workers", Usage: "parallel runs, defaults to sweep.workers or the CPU count"},
		&cli.StringFlag{Name: "out", Usage: "write all ranked results as JSON to this file"},
		&cli.BoolFlag{Name: "save", Usage: "archive the best combination in the SQLite store"},
		&cli.BoolFlag{Name: "no-color", Usage: "disable ANSI colours"},
	}),
	Action: runSweep,
}

func runSweep(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	grid, err := sweepGrid(c)
	if err != nil {
		return usageError{err}
	}
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

	workers := e.cfg.SweepWorkers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	combos := len(grid.Configs(rc))
	e.logger.Info("sweep start", zap.String("strategy", p.Name()), zap.Int("combinations", combos), zap.Int("workers", workers))

	start := time.Now()
	results, err := backtest.Sweep(c.Context, bars, p.Signals(bars), rc, grid, workers)
	if err != nil {
		return err
	}
	if err := backtest.RankSweep(results, backtest.RankBy(c.String("rank"))); err != nil {
		return usageError{err}
	}
	e.logger.Info("sweep done", zap.Int("combinations", len(results)), zap.Duration("elapsed", time.Since(start)))

	terminalui.RenderSweep(c.App.Writer, results, c.Int("top"), !c.Bool("no-color"))

	if out := c.String("out"); out != "" {
		if err := ensureParentDir(out); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		raw, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encode sweep: %w", err)
		}
		if err := os.WriteFile(out, raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}

	if c.Bool("save") && len(results) > 0 {
		best := results[0]
		st, err := store.Open(e.cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		run := &store.Run{
			Kind:       store.KindSweep,
			Params:     store.Params{Strategy: p.Name(), Config: best.Config, DataFile: source},
			Summary:    best.Summary,
			TradeCount: best.Trades,
			BarCount:   len(bars),
		}
		if err := st.Save(c.Context, run); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "best combination archived as %s\n", run.ID)
	}
	return nil
}

// sweepGrid reads --grid first; the list flags then replace single axes.
func sweepGrid(c *cli.Context) (backtest.SweepGrid, error) {
	var g backtest.SweepGrid
	if path := c.String("grid"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return g, fmt.Errorf("read grid: %w", err)
		}
		if err := yaml.Unmarshal(raw, &g); err != nil {
			return g, fmt.Errorf("parse grid: %w", err)
		}
	}

	var err error
	if s := c.String("tp-list"); s != "" {
		if g.TakeProfitPips, err = floatList(s); err != nil {
			return g, fmt.Errorf("--tp-list: %w", err)
		}
	}
	if s := c.String("sl-list"); s != "" {
		g.StopLossPips = nil
		for _, part := range strings.Split(s, ",") {
			sl, err := parseStopLoss(part)
			if err != nil {
				return g, fmt.Errorf("--sl-list: %w", err)
			}
			g.StopLossPips = append(g.StopLossPips, sl)
		}
	}
	if s := c.String("cost-list"); s != "" {
		if g.CostPips, err = floatList(s); err != nil {
			return g, fmt.Errorf("--cost-list: %w", err)
		}
	}
	return g, nil
}

func floatList(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
