package fxd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxopen/config"
)

func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Port = 0
	cfg.DBPath = filepath.Join(t.TempDir(), "runs.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, Options{Config: &cfg}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.FileExists(t, cfg.DBPath)
}
