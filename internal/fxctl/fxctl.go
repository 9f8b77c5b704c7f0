// Package fxctl is the fxopen command line.
package fxctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Run executes the CLI and returns the process exit code:
// 0 on success, 1 on a failed command, 2 on a usage error.
func Run(args []string, version string) int {
	return run(context.Background(), args, version, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, version string, stdout, stderr io.Writer) int {
	app := newApp(version, stdout, stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, args); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "usage error: %v\n", err)
			return 2
		}
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
		return 1
	}
	return 0
}

func newApp(version string, stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "fxopen"
	app.Version = version
	app.Usage = "trade-at-open backtester for EUR/USD daily bars"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file (defaults to ./config.yaml when present)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override log level (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "override log format (console, json)",
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		dualCommand,
		sweepCommand,
		serveCommand,
		runsCommand,
	}
	app.OnUsageError = onUsageError
	markUsage(app.Commands)
	return app
}

func onUsageError(_ *cli.Context, err error, _ bool) error {
	return usageError{err}
}

// markUsage makes flag parse errors of every command exit with code 2.
func markUsage(cmds []*cli.Command) {
	for _, cmd := range cmds {
		if cmd.OnUsageError == nil {
			cmd.OnUsageError = onUsageError
		}
		markUsage(cmd.Subcommands)
	}
}

// usageError marks bad flags or arguments.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }
