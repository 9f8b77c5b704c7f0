package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"fxopen/backtest"
)

// maxCSVBytes caps a downloaded export; 30 years of daily bars is well
// under 2 MiB.
const maxCSVBytes = 16 << 20

// KLineFetcher downloads daily bar CSVs over HTTP.
type KLineFetcher struct {
	client *http.Client
}

// NewKLineFetcher returns a fetcher with a bounded client timeout.
func NewKLineFetcher() *KLineFetcher {
	return &KLineFetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchDailyCSV downloads url and parses it as a daily OHLC export.
func (f *KLineFetcher) FetchDailyCSV(ctx context.Context, url string) ([]backtest.Bar, LoadStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, LoadStats{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return LoadDailyCSV(io.LimitReader(resp.Body, maxCSVBytes))
}
