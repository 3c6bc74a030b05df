package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/plan"
	"github.com/use-agent/pageshot/probe"
	"github.com/use-agent/pageshot/report"
	"github.com/use-agent/pageshot/runner"
	"github.com/use-agent/pageshot/session"
	"github.com/use-agent/pageshot/snapshot"
)

// newRunner wires the browser session, evidence recorder and optional
// preflight into a Runner.
func newRunner(cfg *config.Config, obs runner.Observer, textSnapshots bool) *runner.Runner {
	opts := runner.OptionsFromConfig(cfg.Runner)
	opts.Observer = obs
	opts.Recorder = snapshot.NewRecorder(textSnapshots)
	if cfg.Runner.Preflight {
		opts.Preflight = probe.New(cfg.Browser.Headers)
	}
	return runner.New(session.Opener(cfg.Browser), opts)
}

func newRunCommand(gs *globalState) *cobra.Command {
	var planFile, outputDir string

	cmd := &cobra.Command{
		Use:   "run [plan]",
		Short: "Run a built-in plan or a plan file",
		Long: `Run a verification plan: open each page, wait until it is ready, check
the expected elements are visible and save a screenshot.

Without arguments the "integration" plan runs. Exit status is 0 when every
step passed and 1 otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := selectPlan(planFile, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") {
				p.OutputDir = outputDir
			}
			if err := plan.Validate(p); err != nil {
				return err
			}
			resolved, err := plan.Resolve(p, plan.ParamsFromConfig(gs.cfg.Runner))
			if err != nil {
				return err
			}

			con := newConsole(gs.stdout, gs.stderr)
			r := newRunner(gs.cfg, con, gs.cfg.Runner.TextSnapshots)
			rep, runErr := r.Run(cmd.Context(), resolved)

			reportPath, werr := report.Write(rep)
			if werr != nil {
				slog.Warn("report not written", "error", werr)
			}
			con.summary(rep, reportPath, runErr)
			if runErr != nil {
				return errFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&planFile, "plan-file", "f", "", "YAML plan file to run instead of a built-in plan")
	f.StringVar(&gs.cfg.Runner.BaseURL, "base-url", gs.cfg.Runner.BaseURL, "server URL that url steps are resolved against")
	f.StringVar(&gs.cfg.Runner.SiteDir, "site-dir", gs.cfg.Runner.SiteDir, "directory that file steps are resolved against")
	f.StringVarP(&outputDir, "output-dir", "o", gs.cfg.Runner.OutputDir, "directory for screenshots and the report")
	f.BoolVar(&gs.cfg.Runner.Preflight, "preflight", gs.cfg.Runner.Preflight, "check every target is reachable before launching the browser")
	f.BoolVar(&gs.cfg.Runner.TextSnapshots, "text-snapshots", gs.cfg.Runner.TextSnapshots, "write a Markdown rendition next to each screenshot")
	f.BoolVar(&gs.cfg.Browser.Headless, "headless", gs.cfg.Browser.Headless, "run the browser without a window")
	f.StringVar(&gs.cfg.Browser.ControlURL, "control-url", gs.cfg.Browser.ControlURL, "attach to a running browser instead of launching one")
	return cmd
}

// selectPlan loads the plan file, or the named built-in plan.
func selectPlan(planFile string, args []string) (*models.Plan, error) {
	if planFile != "" {
		if len(args) > 0 {
			return nil, errors.New("give either a plan name or --plan-file, not both")
		}
		return plan.Load(planFile)
	}
	name := plan.Integration
	if len(args) > 0 {
		name = args[0]
	}
	return plan.Builtin(name)
}
