// Package runner executes verification plans: one browser session, one page,
// one step at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/models"
)

// Options tunes a Runner. Zero durations take the defaults below.
type Options struct {
	NavigationTimeout time.Duration // default: 60s
	ReadinessTimeout  time.Duration // default: 5s
	AssertionTimeout  time.Duration // default: 5s
	NetworkIdleQuiet  time.Duration // default: 500ms
	CaptureTimeout    time.Duration // default: 15s

	// DiagnosticScreenshot is the error-state file name inside the plan's
	// output dir. Default: "error_screenshot.png".
	DiagnosticScreenshot string

	Observer  Observer
	Recorder  Recorder // optional
	Preflight Checker  // optional
	Logger    *slog.Logger
}

func (o *Options) defaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 60 * time.Second
	}
	if o.ReadinessTimeout <= 0 {
		o.ReadinessTimeout = 5 * time.Second
	}
	if o.AssertionTimeout <= 0 {
		o.AssertionTimeout = 5 * time.Second
	}
	if o.NetworkIdleQuiet <= 0 {
		o.NetworkIdleQuiet = 500 * time.Millisecond
	}
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = 15 * time.Second
	}
	if o.DiagnosticScreenshot == "" {
		o.DiagnosticScreenshot = "error_screenshot.png"
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// OptionsFromConfig maps the runner section of the configuration.
func OptionsFromConfig(cfg config.RunnerConfig) Options {
	return Options{
		NavigationTimeout:    cfg.NavigationTimeout,
		ReadinessTimeout:     cfg.ReadinessTimeout,
		AssertionTimeout:     cfg.AssertionTimeout,
		NetworkIdleQuiet:     cfg.NetworkIdleQuiet,
		CaptureTimeout:       cfg.CaptureTimeout,
		DiagnosticScreenshot: cfg.DiagnosticScreenshot,
	}
}

// Runner executes resolved plans. A Runner is not safe for concurrent use;
// callers serialise runs.
type Runner struct {
	open  Opener
	opts  Options
	state models.RunState
}

// New creates a Runner that opens a fresh browser session per run.
func New(open Opener, opts Options) *Runner {
	opts.defaults()
	return &Runner{open: open, opts: opts, state: models.StateIdle}
}

// State returns the current lifecycle state.
func (r *Runner) State() models.RunState { return r.state }

// Run executes every step of a resolved plan in order.
//
// Lifecycle:
//
//	idle → session_open → step_running* → session_closed
//	                       step_running → failed → session_closed
//
// The first failed step aborts the remaining steps; the runner then takes a
// best-effort diagnostic screenshot and returns the report together with a
// *models.VerificationError. The browser session is closed on every path.
func (r *Runner) Run(ctx context.Context, plan *models.Plan) (*models.RunReport, error) {
	report := &models.RunReport{
		Plan:      plan.Name,
		OutputDir: plan.OutputDir,
		StartedAt: time.Now(),
		Steps:     make([]models.StepResult, 0, len(plan.Steps)),
	}
	r.state = models.StateIdle
	defer func() {
		report.FinishedAt = time.Now()
		report.FinalState = r.state
	}()

	log := r.opts.Logger.With("plan", plan.Name)

	if err := checkResolved(plan); err != nil {
		r.transition(models.StateSessionClosed)
		return r.fail(report, err)
	}

	if r.opts.Preflight != nil {
		if err := r.preflight(ctx, plan); err != nil {
			r.transition(models.StateSessionClosed)
			return r.fail(report, err)
		}
	}

	// ── Session open ────────────────────────────────────────────────
	browser, err := r.open(ctx)
	if err != nil {
		r.transition(models.StateSessionClosed)
		return r.fail(report, models.NewVerificationError(
			models.ErrCodeBrowserCrash, "", "failed to start browser session", err))
	}
	r.transition(models.StateSessionOpen)
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Warn("browser close failed", "error", cerr)
		}
		r.transition(models.StateSessionClosed)
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		r.transition(models.StateFailed)
		return r.fail(report, models.NewVerificationError(
			models.ErrCodeBrowserCrash, "", "failed to open page", err))
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug("page close failed", "error", cerr)
		}
	}()

	// ── Steps ───────────────────────────────────────────────────────
	total := len(plan.Steps)
	for i, step := range plan.Steps {
		var stepErr error
		var res models.StepResult

		r.transition(models.StateStepRunning)
		if ctxErr := ctx.Err(); ctxErr != nil {
			stepErr = models.NewVerificationError(models.ErrCodeInternal, step.Name, "run canceled", ctxErr)
			res = models.StepResult{Name: step.Name, Target: step.Target, Outcome: models.OutcomeNotExecuted}
		} else {
			r.opts.Observer.StepStarted(i, total, step)
			log.Debug("step started", "index", i, "step", step.Name, "target", step.Target)
			res, stepErr = r.runStep(ctx, page, step)
			r.opts.Observer.StepFinished(i, res)
		}
		report.Steps = append(report.Steps, res)

		if stepErr != nil {
			log.Error("step failed", "step", step.Name, "error", stepErr)
			r.transition(models.StateFailed)
			report.DiagnosticScreenshot = r.captureDiagnostic(ctx, page, plan)
			for _, rest := range plan.Steps[i+1:] {
				report.Steps = append(report.Steps, models.StepResult{
					Name:    rest.Name,
					Target:  rest.Target,
					Outcome: models.OutcomeNotExecuted,
				})
			}
			return r.fail(report, stepErr)
		}
	}

	report.Status = models.RunStatusPassed
	log.Info("run passed", "steps", total)
	return report, nil
}

// runStep performs open → readiness → assertions → interaction → evidence
// → capture for one step. Each step runs at most once.
func (r *Runner) runStep(ctx context.Context, page Page, step models.Step) (models.StepResult, error) {
	start := time.Now()
	res := models.StepResult{Name: step.Name, Target: step.Target}

	fail := func(err *models.VerificationError) (models.StepResult, error) {
		res.Outcome = models.OutcomeFailed
		res.Error = err.ToDetail()
		if shotErr := r.capture(ctx, page, step.Screenshot, step.FullPage); shotErr == nil {
			res.Screenshot = step.Screenshot
		} else {
			r.opts.Logger.Warn("failure screenshot not written",
				"step", step.Name, "path", step.Screenshot, "error", shotErr)
		}
		res.DurationMs = time.Since(start).Milliseconds()
		return res, err
	}

	// ── 1. Viewport ─────────────────────────────────────────────────
	if step.Viewport != nil {
		if err := page.SetViewport(ctx, *step.Viewport); err != nil {
			return fail(models.NewVerificationError(models.ErrCodeBrowserCrash, step.Name,
				fmt.Sprintf("failed to set viewport %dx%d", step.Viewport.Width, step.Viewport.Height), err))
		}
	}

	// ── 2. Open target ──────────────────────────────────────────────
	var idleQuiet time.Duration
	if step.Readiness.Kind == models.ReadinessNetworkIdle {
		idleQuiet = r.opts.NetworkIdleQuiet
	}
	navCtx, cancel := context.WithTimeout(ctx, r.opts.NavigationTimeout)
	err := page.Navigate(navCtx, step.Target, idleQuiet)
	cancel()
	if err != nil {
		return fail(models.NewVerificationError(models.ErrCodeTargetUnreachable, step.Name,
			"navigation to "+step.Target+" failed", err))
	}

	// ── 3. Readiness ────────────────────────────────────────────────
	if ve := r.awaitReadiness(ctx, page, step); ve != nil {
		return fail(ve)
	}

	// ── 4. Assertions (stop at the first failure) ───────────────────
	for _, a := range step.Assertions {
		if ve := r.assert(ctx, page, step, a); ve != nil {
			return fail(ve)
		}
	}

	// ── 5. Interaction ──────────────────────────────────────────────
	shot := step.Screenshot
	if in := step.Interaction; in != nil {
		warning, ve := r.interact(ctx, page, step, in)
		if ve != nil {
			return fail(ve)
		}
		if warning != "" {
			res.Outcome = models.OutcomeWarning
			res.Warning = warning
			if in.FallbackScreenshot != "" {
				shot = in.FallbackScreenshot
			}
		}
	}

	// ── 6. Evidence (never fatal) ───────────────────────────────────
	if r.opts.Recorder != nil {
		res.Snapshot = r.record(ctx, page, step, shot)
	}

	// ── 7. Capture ──────────────────────────────────────────────────
	if err := r.capture(ctx, page, shot, step.FullPage); err != nil {
		ve := models.NewVerificationError(models.ErrCodeCaptureFailed, step.Name,
			"failed to write screenshot "+shot, err)
		res.Outcome = models.OutcomeFailed
		res.Error = ve.ToDetail()
		res.DurationMs = time.Since(start).Milliseconds()
		return res, ve
	}
	res.Screenshot = shot
	if res.Outcome == "" {
		res.Outcome = models.OutcomeCompleted
	}
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

func (r *Runner) awaitReadiness(ctx context.Context, page Page, step models.Step) *models.VerificationError {
	rd := step.Readiness
	switch rd.Kind {
	case "", models.ReadinessLoad:
		return nil

	case models.ReadinessElement:
		wctx, cancel := context.WithTimeout(ctx, rd.Timeout.Or(r.opts.ReadinessTimeout))
		defer cancel()
		if err := page.WaitVisible(wctx, rd.Locator); err != nil {
			return models.NewVerificationError(models.ErrCodeAssertionTimeout, step.Name,
				"readiness: "+rd.Locator.String()+" did not become visible", err)
		}
		return nil

	case models.ReadinessDelay:
		timer := time.NewTimer(rd.Delay.Std())
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return models.NewVerificationError(models.ErrCodeAssertionTimeout, step.Name,
				"readiness: settle delay interrupted", ctx.Err())
		}

	case models.ReadinessNetworkIdle:
		wctx, cancel := context.WithTimeout(ctx, rd.Timeout.Or(r.opts.ReadinessTimeout))
		defer cancel()
		if err := page.WaitNetworkIdle(wctx); err != nil {
			return models.NewVerificationError(models.ErrCodeAssertionTimeout, step.Name,
				"readiness: network did not settle", err)
		}
		return nil
	}

	return models.NewVerificationError(models.ErrCodeInvalidInput, step.Name,
		fmt.Sprintf("unknown readiness kind %q", rd.Kind), nil)
}

func (r *Runner) assert(ctx context.Context, page Page, step models.Step, a models.Assertion) *models.VerificationError {
	wctx, cancel := context.WithTimeout(ctx, a.Timeout.Or(r.opts.AssertionTimeout))
	defer cancel()
	if err := page.WaitVisible(wctx, a.Locator); err != nil {
		return models.NewVerificationError(models.ErrCodeAssertionTimeout, step.Name,
			"assertion failed: "+a.Label(), err)
	}
	return nil
}

// interact clicks the trigger and checks what it reveals. A missing
// optional trigger is returned as a warning, not an error.
func (r *Runner) interact(ctx context.Context, page Page, step models.Step, in *models.Interaction) (string, *models.VerificationError) {
	timeout := in.Timeout.Or(r.opts.AssertionTimeout)

	wctx, cancel := context.WithTimeout(ctx, timeout)
	err := page.WaitVisible(wctx, in.Trigger)
	cancel()
	if err != nil {
		if in.Optional && ctx.Err() == nil {
			msg := fmt.Sprintf("trigger %s not found; capturing page for context", in.Trigger)
			r.opts.Logger.Warn("optional trigger missing", "step", step.Name, "trigger", in.Trigger.String())
			r.opts.Observer.Warning(step, msg)
			return msg, nil
		}
		return "", models.NewVerificationError(models.ErrCodeAssertionTimeout, step.Name,
			"trigger "+in.Trigger.String()+" not visible", err)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	err = page.Click(cctx, in.Trigger)
	cancel()
	if err != nil {
		return "", models.NewVerificationError(models.ErrCodeAssertionTimeout, step.Name,
			"click on "+in.Trigger.String()+" failed", err)
	}

	for _, a := range in.Expect {
		if ve := r.assert(ctx, page, step, a); ve != nil {
			return "", ve
		}
	}
	return "", nil
}

func (r *Runner) record(ctx context.Context, page Page, step models.Step, shot string) *models.Snapshot {
	cctx, cancel := context.WithTimeout(ctx, r.opts.CaptureTimeout)
	defer cancel()

	html, title, err := page.HTML(cctx)
	if err != nil {
		r.opts.Logger.Warn("evidence: page HTML unavailable", "step", step.Name, "error", err)
		return nil
	}
	snap, err := r.opts.Recorder.Record(cctx, step, shot, html, title)
	if err != nil {
		r.opts.Logger.Warn("evidence: record failed", "step", step.Name, "error", err)
	}
	return snap
}

// capture writes a screenshot. It detaches from ctx cancellation so a
// failing run can still leave evidence behind.
func (r *Runner) capture(ctx context.Context, page Page, path string, fullPage bool) error {
	if path == "" {
		return errors.New("no screenshot path")
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CaptureTimeout)
	defer cancel()
	return page.Screenshot(cctx, path, fullPage)
}

func (r *Runner) captureDiagnostic(ctx context.Context, page Page, plan *models.Plan) string {
	path := filepath.Join(plan.OutputDir, r.opts.DiagnosticScreenshot)
	err := r.capture(ctx, page, path, false)
	r.opts.Observer.Diagnostic(path, err)
	if err != nil {
		r.opts.Logger.Warn("diagnostic screenshot not written", "path", path, "error", err)
		return ""
	}
	return path
}

func (r *Runner) preflight(ctx context.Context, plan *models.Plan) error {
	seen := make(map[string]struct{}, len(plan.Steps))
	for _, step := range plan.Steps {
		if _, ok := seen[step.Target]; ok {
			continue
		}
		seen[step.Target] = struct{}{}
		if err := r.opts.Preflight.Check(ctx, step.Target); err != nil {
			var ve *models.VerificationError
			if errors.As(err, &ve) && ve.Step == "" {
				ve.Step = step.Name
				return ve
			}
			return models.NewVerificationError(models.ErrCodeTargetUnreachable, step.Name,
				"preflight check failed for "+step.Target, err)
		}
	}
	return nil
}

func (r *Runner) fail(report *models.RunReport, err error) (*models.RunReport, error) {
	ve := models.AsVerificationError(err)
	report.Status = models.RunStatusFailed
	report.Error = ve.ToDetail()
	return report, ve
}

// validTransitions lists the legal moves of the run state machine.
var validTransitions = map[models.RunState][]models.RunState{
	models.StateIdle:        {models.StateSessionOpen, models.StateSessionClosed},
	models.StateSessionOpen: {models.StateStepRunning, models.StateFailed, models.StateSessionClosed},
	models.StateStepRunning: {models.StateStepRunning, models.StateFailed, models.StateSessionClosed},
	models.StateFailed:      {models.StateSessionClosed},
}

func (r *Runner) transition(to models.RunState) {
	from := r.state
	legal := false
	for _, s := range validTransitions[from] {
		if s == to {
			legal = true
			break
		}
	}
	if !legal {
		r.opts.Logger.Error("illegal run state transition", "from", from, "to", to)
	}
	r.state = to
	r.opts.Observer.StateChanged(from, to)
}

// checkResolved rejects plans whose steps were never resolved to targets.
func checkResolved(plan *models.Plan) error {
	if len(plan.Steps) == 0 {
		return models.NewVerificationError(models.ErrCodeInvalidInput, "", "plan has no steps", nil)
	}
	for _, s := range plan.Steps {
		if s.Target == "" {
			return models.NewVerificationError(models.ErrCodeInvalidInput, s.Name, "step has no resolved target", nil)
		}
		if s.Screenshot == "" {
			return models.NewVerificationError(models.ErrCodeInvalidInput, s.Name, "step has no screenshot path", nil)
		}
	}
	return nil
}
