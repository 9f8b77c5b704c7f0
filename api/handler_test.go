package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxopen/backtest"
	"fxopen/store"
)

type runResponse struct {
	Code int `json:"code"`
	Data struct {
		ID          string                  `json:"id"`
		Summary     backtest.Summary        `json:"summary"`
		Trades      []backtest.Trade        `json:"trades"`
		EquityCurve backtest.EquityCurve    `json:"equity_curve"`
		Sessions    *backtest.SessionReport `json:"sessions"`
		Warnings    []string                `json:"warnings"`
	} `json:"data"`
}

func twoBars() []backtest.Bar {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []backtest.Bar{
		{Date: d, Open: 1.1590, High: 1.1600, Low: 1.1580, Close: 1.1595},
		{Date: d.AddDate(0, 0, 1), Open: 1.1600, High: 1.1625, Low: 1.1595, Close: 1.1610},
	}
}

func newTestServer(t *testing.T, bars []backtest.Bar, withStore bool) http.Handler {
	t.Helper()
	opt := Options{Bars: bars}
	if withStore {
		st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		opt.Store = st
	}
	return NewServer(opt).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRunBacktest(t *testing.T) {
	h := newTestServer(t, nil, false)

	w := do(t, h, http.MethodPost, "/api/backtest", gin.H{
		"bars": twoBars(),
		"signals": []backtest.Signal{
			{Direction: backtest.DirectionFlat},
			{Direction: backtest.DirectionLong},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp runResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Code)
	assert.Empty(t, resp.Data.ID, "nothing is archived without a store")
	require.Len(t, resp.Data.Trades, 1)
	assert.Equal(t, backtest.ExitTakeProfit, resp.Data.Trades[0].ExitReason)
	assert.Equal(t, []float64{10000, 10080}, resp.Data.EquityCurve.Values())
	assert.InDelta(t, 8.0, resp.Data.Summary.TotalPips, 1e-9)
	assert.True(t, resp.Data.Summary.ProfitFactor.IsInf())
}

func TestRunBacktestDefaultBarsAndStrategy(t *testing.T) {
	h := newTestServer(t, twoBars(), false)

	w := do(t, h, http.MethodPost, "/api/backtest", gin.H{
		"strategy": gin.H{"type": "price_trend", "params": gin.H{"period": 1}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp runResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.EquityCurve, 2)
}

func TestRunBacktestRejections(t *testing.T) {
	h := newTestServer(t, twoBars(), false)

	cases := map[string]any{
		"bad hold":         gin.H{"config": gin.H{"hold": "forever"}},
		"negative tp":      gin.H{"config": gin.H{"take_profit_pips": -1}},
		"zero stop-loss":   gin.H{"config": gin.H{"stop_loss_pips": 0}},
		"unknown strategy": gin.H{"strategy": gin.H{"type": "martingale"}},
	}
	for name, body := range cases {
		w := do(t, h, http.MethodPost, "/api/backtest", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), `"error"`, name)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/backtest", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunBacktestRejectsBadBarOrder(t *testing.T) {
	h := newTestServer(t, nil, false)

	bars := twoBars()
	bars[0], bars[1] = bars[1], bars[0]
	w := do(t, h, http.MethodPost, "/api/backtest", gin.H{"bars": bars})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/backtest", gin.H{
		"bars": []gin.H{
			{"open": 1.1010, "high": 1.1020, "low": 1.1000, "close": 1.1015},
			{"open": 1.1000, "high": 1.1010, "low": 1.0990, "close": 1.1005},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bar 0 has no date")
}

func TestRunBacktestWithoutBars(t *testing.T) {
	h := newTestServer(t, nil, false)
	w := do(t, h, http.MethodPost, "/api/backtest", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunDualBacktestArchived(t *testing.T) {
	h := newTestServer(t, nil, true)

	eur, us := 1.1000, 1.1006
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := do(t, h, http.MethodPost, "/api/backtest/dual", gin.H{
		"bars": []backtest.Bar{{Date: d, Open: 1.1000, High: 1.1030, Low: 1.0995, Close: 1.1020}},
		"signals": []backtest.SessionSignal{{
			EUR: backtest.SessionEntry{Direction: backtest.DirectionLong, OpenPrice: &eur},
			US:  backtest.SessionEntry{Direction: backtest.DirectionLong, OpenPrice: &us},
		}},
		"save": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp runResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Trades, 2)
	require.NotNil(t, resp.Data.Sessions)
	assert.Equal(t, 1, resp.Data.Sessions.DaysWithTwo)
	require.NotEmpty(t, resp.Data.ID)

	w = do(t, h, http.MethodGet, "/api/runs/"+resp.Data.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, store.KindDual, got.Data.Kind)
	assert.Equal(t, 2, got.Data.TradeCount)

	w = do(t, h, http.MethodGet, "/api/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(t, h, http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunsWithoutStore(t *testing.T) {
	h := newTestServer(t, nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/runs", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/runs/x", nil).Code)
}

func TestStatusAndHealth(t *testing.T) {
	h := newTestServer(t, twoBars(), false)

	w := do(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Bars         int      `json:"bars"`
			StoreEnabled bool     `json:"store_enabled"`
			Strategies   []string `json:"strategies"`
			NextSession  string   `json:"next_session"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Bars)
	assert.False(t, resp.Data.StoreEnabled)
	assert.Contains(t, resp.Data.Strategies, "price_trend")
	assert.Contains(t, []string{"eur", "us"}, resp.Data.NextSession)

	w = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
