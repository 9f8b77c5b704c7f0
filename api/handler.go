package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fxopen/backtest"
	"fxopen/store"
	"fxopen/strategy"
	"fxopen/trading"
)

// Handler serves the backtest endpoints.
type Handler struct {
	bars   []backtest.Bar
	store  *store.Store
	logger *zap.Logger
}

// NewHandler builds a Handler. st may be nil.
func NewHandler(bars []backtest.Bar, st *store.Store, logger *zap.Logger) *Handler {
	return &Handler{bars: bars, store: st, logger: logger}
}

// ConfigInput overlays backtest.DefaultRunConfig. A missing
// stop_loss_pips runs without a stop-loss.
type ConfigInput struct {
	TakeProfitPips   *float64 `json:"take_profit_pips"`
	StopLossPips     *float64 `json:"stop_loss_pips"`
	CostPerTradePips *float64 `json:"cost_per_trade_pips"`
	InitialEquity    *float64 `json:"initial_equity"`
	PipValue         *float64 `json:"pip_value"`
	Hold             string   `json:"hold"`
}

func (in ConfigInput) runConfig() backtest.RunConfig {
	cfg := backtest.DefaultRunConfig()
	if in.TakeProfitPips != nil {
		cfg.TakeProfitPips = *in.TakeProfitPips
	}
	cfg.StopLossPips = in.StopLossPips
	if in.CostPerTradePips != nil {
		cfg.CostPerTradePips = *in.CostPerTradePips
	}
	if in.InitialEquity != nil {
		cfg.InitialEquity = *in.InitialEquity
	}
	if in.PipValue != nil {
		cfg.PipValue = *in.PipValue
	}
	if in.Hold != "" {
		cfg.Hold = backtest.HoldPolicy(in.Hold)
	}
	return cfg
}

type BacktestRequest struct {
	Bars     []backtest.Bar         `json:"bars"`
	Signals  []backtest.Signal      `json:"signals"`
	Strategy *backtest.StrategySpec `json:"strategy"`
	Config   ConfigInput            `json:"config"`
	Save     bool                   `json:"save"`
}

type DualBacktestRequest struct {
	Bars     []backtest.Bar           `json:"bars"`
	Signals  []backtest.SessionSignal `json:"signals"`
	Strategy *backtest.StrategySpec   `json:"strategy"`
	Config   ConfigInput              `json:"config"`
	Save     bool                     `json:"save"`
}

// RunBacktest runs a single-session backtest.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	bars, ok := h.barsFor(c, req.Bars)
	if !ok {
		return
	}

	name := "signals"
	signals := req.Signals
	if signals == nil {
		p, err := providerFor(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		name = p.Name()
		signals = p.Signals(bars)
	}

	cfg := req.Config.runConfig()
	res, err := backtest.Run(bars, signals, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	summary := backtest.Summarize(res.Trades, res.EquityCurve, res.InitialEquity, cfg.PipValue)

	run := &store.Run{
		Kind:       store.KindSingle,
		Params:     store.Params{Strategy: name, Config: cfg},
		Summary:    summary,
		TradeCount: len(res.Trades),
		BarCount:   len(bars),
	}
	h.respond(c, req.Save, run, res)
}

// RunDualBacktest runs the EUR then US session backtest.
func (h *Handler) RunDualBacktest(c *gin.Context) {
	var req DualBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	bars, ok := h.barsFor(c, req.Bars)
	if !ok {
		return
	}

	name := "signals"
	signals := req.Signals
	if signals == nil {
		p, err := providerFor(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dual := strategy.DualMarketOpen{Trend: p}
		name = dual.Name()
		signals = dual.SessionSignals(bars)
	}

	cfg := req.Config.runConfig()
	res, err := backtest.RunDual(bars, signals, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	sessions := backtest.AnalyzeSessions(res)

	run := &store.Run{
		Kind:       store.KindDual,
		Params:     store.Params{Strategy: name, Config: cfg},
		Summary:    backtest.Summarize(res.Trades, res.EquityCurve, res.InitialEquity, cfg.PipValue),
		Sessions:   &sessions,
		TradeCount: len(res.Trades),
		BarCount:   len(bars),
	}
	h.respond(c, req.Save, run, res)
}

// ListRuns lists archived runs, newest first.
func (h *Handler) ListRuns(c *gin.Context) {
	if !h.storeEnabled(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(runs),
		"data":  runs,
	})
}

// GetRun returns one archived run.
func (h *Handler) GetRun(c *gin.Context) {
	if !h.storeEnabled(c) {
		return
	}
	run, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": run,
	})
}

// GetStatus reports loaded data and the session clock.
func (h *Handler) GetStatus(c *gin.Context) {
	now := time.Now().UTC()
	market, next := trading.NextSessionOpen(now)

	data := gin.H{
		"bars":            len(h.bars),
		"store_enabled":   h.store != nil,
		"strategies":      strategy.Names(),
		"session_open":    trading.IsMarketOpenTime(now, trading.MarketBoth),
		"next_session":    market,
		"next_session_at": next,
	}
	if n := len(h.bars); n > 0 {
		data["first_date"] = h.bars[0].Date
		data["last_date"] = h.bars[n-1].Date
	}
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": data,
	})
}

// barsFor picks the request bars or the server's default set. Request bars
// must carry dates so their order can be checked.
func (h *Handler) barsFor(c *gin.Context, bars []backtest.Bar) ([]backtest.Bar, bool) {
	for i, b := range bars {
		if b.Date.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("bar %d has no date", i)})
			return nil, false
		}
	}
	if len(bars) == 0 {
		bars = h.bars
	}
	if len(bars) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no bars: send bars or start the server with a data file"})
		return nil, false
	}
	return bars, true
}

func (h *Handler) storeEnabled(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive is disabled"})
		return false
	}
	return true
}

func (h *Handler) respond(c *gin.Context, save bool, run *store.Run, res backtest.Result) {
	if save && h.store != nil {
		if err := h.store.Save(c.Request.Context(), run); err != nil {
			h.fail(c, err)
			return
		}
		h.logger.Info("run archived", zap.String("id", run.ID), zap.String("kind", string(run.Kind)))
	}

	data := gin.H{
		"summary":        run.Summary,
		"trades":         res.Trades,
		"initial_equity": res.InitialEquity,
		"equity_curve":   res.EquityCurve,
	}
	if run.ID != "" {
		data["id"] = run.ID
	}
	if run.Sessions != nil {
		data["sessions"] = run.Sessions
	}
	if len(res.Warnings) > 0 {
		data["warnings"] = res.Warnings
	}
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": data,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backtest.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func providerFor(spec *backtest.StrategySpec) (strategy.Provider, error) {
	if spec == nil {
		return strategy.FromSpec(backtest.StrategySpec{})
	}
	return strategy.FromSpec(*spec)
}
