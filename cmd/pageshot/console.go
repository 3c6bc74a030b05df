package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/runner"
)

// console prints run progress to out and failure detail to errOut.
type console struct {
	runner.NopObserver

	out    io.Writer
	errOut io.Writer

	ok   *color.Color
	warn *color.Color
	fail *color.Color
	dim  *color.Color
}

func newConsole(out, errOut io.Writer) *console {
	return &console{
		out:    out,
		errOut: errOut,
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
	}
}

func (c *console) StepStarted(index, total int, step models.Step) {
	fmt.Fprintf(c.out, "[%d/%d] %s ", index+1, total, step.Name)
	c.dim.Fprintf(c.out, "%s\n", step.Target)
}

func (c *console) StepFinished(_ int, res models.StepResult) {
	switch res.Outcome {
	case models.OutcomeCompleted:
		c.ok.Fprint(c.out, "  ok ")
		fmt.Fprintf(c.out, "%s (%s)\n", res.Screenshot, time.Duration(res.DurationMs)*time.Millisecond)
	case models.OutcomeWarning:
		c.warn.Fprint(c.out, "  ok ")
		fmt.Fprintf(c.out, "%s (%s)\n", res.Screenshot, time.Duration(res.DurationMs)*time.Millisecond)
	case models.OutcomeFailed:
		c.fail.Fprintf(c.errOut, "  FAIL %s\n", res.Name)
		if res.Error != nil {
			fmt.Fprintf(c.errOut, "    %s: %s\n", res.Error.Code, res.Error.Message)
		}
	}
}

func (c *console) Warning(_ models.Step, message string) {
	c.warn.Fprintf(c.out, "  warning: %s\n", message)
}

func (c *console) Diagnostic(path string, err error) {
	if err != nil {
		fmt.Fprintf(c.errOut, "  error screenshot not written: %v\n", err)
		return
	}
	fmt.Fprintf(c.errOut, "  error screenshot: %s\n", path)
}

// summary prints the closing lines of a run.
func (c *console) summary(rep *models.RunReport, reportPath string, runErr error) {
	done := 0
	for _, s := range rep.Steps {
		if s.Outcome == models.OutcomeCompleted || s.Outcome == models.OutcomeWarning {
			done++
		}
	}

	if reportPath != "" {
		c.dim.Fprintf(c.out, "report: %s\n", reportPath)
	}
	if runErr == nil {
		c.ok.Fprintf(c.out, "PASS %s: %d/%d steps\n", rep.Plan, done, len(rep.Steps))
		return
	}
	c.fail.Fprintf(c.errOut, "FAIL %s: %d/%d steps\n", rep.Plan, done, len(rep.Steps))
	fmt.Fprintf(c.errOut, "%v\n", runErr)
}
