package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/use-agent/pageshot/config"
)

// exitError carries a non-zero exit code for a failure that was already
// reported to the user.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var errFailed = &exitError{code: 1}

// globalState is shared by every subcommand.
type globalState struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer

	noColor bool
}

func newGlobalState() *globalState {
	return &globalState{
		cfg:    config.Load(),
		stdout: color.Output,
		stderr: color.Error,
	}
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "pageshot",
		Short:         "Verify pages of a site and capture screenshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if gs.noColor {
				color.NoColor = true
			}
			initLogger(gs.cfg.Log, gs.stderr)
			return nil
		},
	}
	root.SetOut(gs.stdout)
	root.SetErr(gs.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&gs.cfg.Log.Level, "log-level", gs.cfg.Log.Level, "log level: debug, info, warn or error")
	pf.StringVar(&gs.cfg.Log.Format, "log-format", gs.cfg.Log.Format, "log format: text or json")
	pf.BoolVar(&gs.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCommand(gs),
		newPlansCommand(gs),
		newCompareCommand(gs),
		newServeCommand(gs),
	)
	return root
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gs := newGlobalState()
	return run(ctx, gs, os.Args[1:])
}

func run(ctx context.Context, gs *globalState, args []string) int {
	root := newRootCommand(gs)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	color.New(color.FgRed).Fprintf(gs.stderr, "error: %v\n", err)
	return 1
}

// initLogger configures slog based on the LogConfig. Logs go to w so that
// stdout carries only progress output.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
