// Package fxd runs the HTTP backtest service until its context ends.
package fxd

import (
	"context"

	"go.uber.org/zap"

	"fxopen/api"
	"fxopen/backtest"
	"fxopen/config"
	"fxopen/store"
)

// Options holds what the daemon serves. Bars may be empty, in which case
// every request must bring its own.
type Options struct {
	Config  *config.Config
	Bars    []backtest.Bar
	Logger  *zap.Logger
	NoStore bool
}

func Serve(ctx context.Context, opt Options) error {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opt.Config
	if cfg == nil {
		def := config.DefaultConfig
		cfg = &def
	}

	var st *store.Store
	if !opt.NoStore {
		var err error
		if st, err = store.Open(cfg.DBPath); err != nil {
			return err
		}
		defer st.Close()
		logger.Info("run archive opened", zap.String("db", cfg.DBPath))
	}

	logger.Info("=== fxopen backtest service ===", zap.Int("bars", len(opt.Bars)))

	server := api.NewServer(api.Options{
		Port:   cfg.Port,
		Bars:   opt.Bars,
		Store:  st,
		Logger: logger,
	})

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		return err
	}
	logger.Info("service stopped")
	return nil
}
