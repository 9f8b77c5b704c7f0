package fxctl

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"fxopen/backtest"
	"fxopen/internal/fxd"
	"fxopen/internal/terminalui"
	"fxopen/store"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "start the HTTP backtest service",
	Flags: flags(dataFlags, []cli.Flag{
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port, overrides server.port"},
		&cli.BoolFlag{Name: "no-data", Usage: "start without default bars; requests must send their own"},
		&cli.BoolFlag{Name: "no-store", Usage: "disable the run archive"},
	}),
	Action: func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer func() { _ = e.logger.Sync() }()
		if c.IsSet("port") {
			e.cfg.Port = c.Int("port")
		}

		var bars []backtest.Bar
		if !c.Bool("no-data") {
			if bars, _, err = e.loadBars(c); err != nil {
				return err
			}
		}
		return fxd.Serve(c.Context, fxd.Options{
			Config:  e.cfg,
			Bars:    bars,
			Logger:  e.logger,
			NoStore: c.Bool("no-store"),
		})
	},
}

var runsCommand = &cli.Command{
	Name:  "runs",
	Usage: "inspect archived runs",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "list archived runs, newest first",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
			},
			Action: func(c *cli.Context) error {
				return withStore(c, func(st *store.Store) error {
					runs, err := st.List(c.Context, c.Int("limit"))
					if err != nil {
						return err
					}
					terminalui.RenderRuns(c.App.Writer, runs)
					return nil
				})
			},
		},
		{
			Name:      "show",
			Usage:     "print one archived run as JSON",
			ArgsUsage: "<id>",
			Action: func(c *cli.Context) error {
				id := c.Args().First()
				if id == "" {
					return usageError{fmt.Errorf("runs show needs a run id")}
				}
				return withStore(c, func(st *store.Store) error {
					run, err := st.Get(c.Context, id)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(c.App.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(run)
				})
			},
		},
	},
}

func withStore(c *cli.Context, fn func(*store.Store) error) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	st, err := store.Open(e.cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	e.logger.Debug("run archive opened", zap.String("db", e.cfg.DBPath))
	return fn(st)
}
