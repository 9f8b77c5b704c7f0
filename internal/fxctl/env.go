package fxctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"fxopen/backtest"
	"fxopen/config"
	"fxopen/fetcher"
	"fxopen/internal/logging"
)

// env is what every command needs before it starts working.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup(c *cli.Context) (*env, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("data") {
		cfg.DataFile, cfg.DataURL = c.String("data"), ""
	}
	if c.IsSet("url") {
		cfg.DataURL = c.String("url")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, usageError{err}
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// loadBars reads the configured data set; a URL wins over a file.
func (e *env) loadBars(c *cli.Context) ([]backtest.Bar, string, error) {
	var (
		bars   []backtest.Bar
		stats  fetcher.LoadStats
		source string
		err    error
	)
	if e.cfg.DataURL != "" {
		source = e.cfg.DataURL
		bars, stats, err = fetcher.NewKLineFetcher().FetchDailyCSV(c.Context, source)
	} else {
		source = e.cfg.DataFile
		bars, stats, err = fetcher.LoadDailyCSVFile(source)
	}
	if err != nil {
		return nil, source, fmt.Errorf("load bars from %s: %w", source, err)
	}
	if len(bars) == 0 {
		return nil, source, fmt.Errorf("load bars from %s: no usable rows", source)
	}

	e.logger.Info("bars loaded",
		zap.String("source", source),
		zap.Int("rows", stats.Rows),
		zap.Int("kept", stats.Kept),
		zap.Int("dropped", stats.Dropped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Time("first", bars[0].Date),
		zap.Time("last", bars[len(bars)-1].Date),
	)
	return bars, source, nil
}

// runParams resolves engine and strategy parameters. Precedence, lowest
// first: config file and env, --bt-config, individual flags.
func (e *env) runParams(c *cli.Context) (backtest.RunConfig, backtest.StrategySpec, error) {
	rc := e.cfg.RunConfig()
	spec := e.cfg.StrategySpec()

	if p := c.String("bt-config"); p != "" {
		fileRC, fileSpec, err := backtest.LoadRunConfigOnto(p, rc)
		if err != nil {
			return rc, spec, err
		}
		rc = fileRC
		if fileSpec.Type != "" {
			spec = fileSpec
		}
	}

	if c.IsSet("tp") {
		rc.TakeProfitPips = c.Float64("tp")
	}
	if c.IsSet("sl") {
		sl, err := parseStopLoss(c.String("sl"))
		if err != nil {
			return rc, spec, usageError{err}
		}
		rc.StopLossPips = sl
	}
	if c.IsSet("cost") {
		rc.CostPerTradePips = c.Float64("cost")
	}
	if c.IsSet("equity") {
		rc.InitialEquity = c.Float64("equity")
	}
	if c.IsSet("hold") {
		rc.Hold = backtest.HoldPolicy(strings.ToLower(c.String("hold")))
	}

	if c.IsSet("strategy") {
		spec.Type = c.String("strategy")
	}
	if c.IsSet("period") {
		params := make(map[string]any, len(spec.Params)+1)
		for k, v := range spec.Params {
			params[k] = v
		}
		params["period"] = c.Int("period")
		spec.Params = params
	}
	return rc, spec, nil
}

// parseStopLoss reads "none" (or "") as no stop-loss.
func parseStopLoss(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("stop-loss %q: %w", s, err)
	}
	return &f, nil
}

func ensureParentDir(path string) error {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil
	}
	dir := filepath.Dir(p)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var dataFlags = []cli.Flag{
	&cli.StringFlag{Name: "data", Usage: "daily OHLC CSV file"},
	&cli.StringFlag{Name: "url", Usage: "download the daily CSV from this URL instead of reading a file"},
}

var paramFlags = []cli.Flag{
	&cli.StringFlag{Name: "bt-config", Usage: "backtest YAML (backtest + strategy sections)"},
	&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Usage: "signal provider name"},
	&cli.IntFlag{Name: "period", Usage: "SMA period of the trend filter"},
	&cli.Float64Flag{Name: "tp", Usage: "take-profit distance in pips"},
	&cli.StringFlag{Name: "sl", Usage: "stop-loss distance in pips, or \"none\""},
	&cli.Float64Flag{Name: "cost", Usage: "round-trip cost per trade in pips"},
	&cli.Float64Flag{Name: "equity", Usage: "initial account equity"},
	&cli.StringFlag{Name: "hold", Usage: "eod closes every trade on its entry bar, carry holds until TP/SL"},
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
