package runner

import (
	"context"

	"github.com/use-agent/pageshot/models"
)

// Observer receives progress notifications from a run. Calls happen on the
// run's goroutine, in order.
type Observer interface {
	StateChanged(from, to models.RunState)
	StepStarted(index, total int, step models.Step)
	StepFinished(index int, result models.StepResult)
	Warning(step models.Step, message string)
	Diagnostic(path string, err error)
}

// NopObserver ignores every notification. Embed it to implement only the
// callbacks you need.
type NopObserver struct{}

func (NopObserver) StateChanged(models.RunState, models.RunState) {}
func (NopObserver) StepStarted(int, int, models.Step)             {}
func (NopObserver) StepFinished(int, models.StepResult)           {}
func (NopObserver) Warning(models.Step, string)                   {}
func (NopObserver) Diagnostic(string, error)                      {}

// Recorder stores textual evidence for a step next to its screenshot.
type Recorder interface {
	Record(ctx context.Context, step models.Step, screenshot, html, title string) (*models.Snapshot, error)
}

// Checker verifies a target is reachable before any browser work.
type Checker interface {
	Check(ctx context.Context, target string) error
}
