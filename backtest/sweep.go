package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SweepGrid is the cartesian product of exit parameters to try. A nil
// entry in StopLossPips means "no stop-loss". Empty lists keep the base
// configuration's value.
type SweepGrid struct {
	TakeProfitPips []float64  `json:"take_profit_pips" yaml:"take_profit_pips"`
	StopLossPips   []*float64 `json:"stop_loss_pips" yaml:"stop_loss_pips"`
	CostPips       []float64  `json:"cost_pips" yaml:"cost_pips"`
}

type SweepResult struct {
	Config  RunConfig `json:"config"`
	Summary Summary   `json:"summary"`
	Trades  int       `json:"trades"`
}

// Configs expands the grid over base, TP slowest and cost fastest.
func (g SweepGrid) Configs(base RunConfig) []RunConfig {
	tps := g.TakeProfitPips
	if len(tps) == 0 {
		tps = []float64{base.TakeProfitPips}
	}
	sls := g.StopLossPips
	if len(sls) == 0 {
		sls = []*float64{base.StopLossPips}
	}
	costs := g.CostPips
	if len(costs) == 0 {
		costs = []float64{base.CostPerTradePips}
	}

	out := make([]RunConfig, 0, len(tps)*len(sls)*len(costs))
	for _, tp := range tps {
		for _, sl := range sls {
			for _, c := range costs {
				cfg := base
				cfg.TakeProfitPips = tp
				cfg.StopLossPips = sl
				cfg.CostPerTradePips = c
				out = append(out, cfg)
			}
		}
	}
	return out
}

// Sweep runs every grid combination over the same bars and signals with
// at most workers concurrent runs. Results come back in grid order. The
// first invalid combination or a cancelled ctx aborts the sweep.
func Sweep(ctx context.Context, bars []Bar, signals []Signal, base RunConfig, grid SweepGrid, workers int) ([]SweepResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	cfgs := grid.Configs(base)
	out := make([]SweepResult, len(cfgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cfg := range cfgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Run(bars, signals, cfg)
			if err != nil {
				return fmt.Errorf("sweep combination %d: %w", i, err)
			}
			cfg = cfg.withDefaults()
			out[i] = SweepResult{
				Config:  cfg,
				Summary: Summarize(res.Trades, res.EquityCurve, res.InitialEquity, cfg.PipValue),
				Trades:  len(res.Trades),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type RankBy string

const (
	RankTotalPips    RankBy = "total_pips"
	RankProfitFactor RankBy = "profit_factor"
	RankSharpe       RankBy = "sharpe"
)

// RankSweep sorts results best first. Ties keep grid order.
func RankSweep(results []SweepResult, by RankBy) error {
	var key func(SweepResult) float64
	switch by {
	case RankTotalPips, "":
		key = func(r SweepResult) float64 { return r.Summary.TotalPips }
	case RankProfitFactor:
		key = func(r SweepResult) float64 { return float64(r.Summary.ProfitFactor) }
	case RankSharpe:
		key = func(r SweepResult) float64 { return r.Summary.Sharpe }
	default:
		return fmt.Errorf("unknown rank key %q", by)
	}
	sort.SliceStable(results, func(i, j int) bool { return key(results[i]) > key(results[j]) })
	return nil
}
