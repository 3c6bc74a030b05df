package models

import "time"

// Outcome tags the result of a single step. Only OutcomeFailed aborts the
// remaining run.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeWarning     Outcome = "completed_with_warning"
	OutcomeFailed      Outcome = "failed"
	OutcomeNotExecuted Outcome = "not_executed"
)

// RunState is the runner's lifecycle state.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateSessionOpen   RunState = "session_open"
	StateStepRunning   RunState = "step_running"
	StateFailed        RunState = "failed"
	StateSessionClosed RunState = "session_closed"
)

// Run statuses reported for a whole run.
const (
	RunStatusPassed = "passed"
	RunStatusFailed = "failed"
)

// Snapshot is the textual evidence recorded next to a screenshot.
type Snapshot struct {
	// Title is document.title at capture time.
	Title string `json:"title,omitempty"`

	// TextFingerprint is a 64-bit SimHash of the visible page text.
	TextFingerprint uint64 `json:"text_fingerprint"`

	// StructureFingerprint is a 64-bit SimHash of the DOM tag sequence.
	StructureFingerprint uint64 `json:"structure_fingerprint"`

	// MarkdownPath is set when a Markdown rendition was written.
	MarkdownPath string `json:"markdown_path,omitempty"`
}

// StepResult is the per-step record in a run report.
type StepResult struct {
	Name       string       `json:"name"`
	Target     string       `json:"target"`
	Outcome    Outcome      `json:"outcome"`
	Screenshot string       `json:"screenshot,omitempty"`
	Warning    string       `json:"warning,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Snapshot   *Snapshot    `json:"snapshot,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// RunReport summarises one execution of a plan.
type RunReport struct {
	Plan       string       `json:"plan"`
	Status     string       `json:"status"`
	FinalState RunState     `json:"final_state"`
	OutputDir  string       `json:"output_dir"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepResult `json:"steps"`

	// DiagnosticScreenshot is the error-state capture taken when a run
	// fails, if one could be written.
	DiagnosticScreenshot string       `json:"diagnostic_screenshot,omitempty"`
	Error                *ErrorDetail `json:"error,omitempty"`
}

// Screenshots lists every screenshot path the run wrote, in order.
func (r *RunReport) Screenshots() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Screenshot != "" {
			out = append(out, s.Screenshot)
		}
	}
	if r.DiagnosticScreenshot != "" {
		out = append(out, r.DiagnosticScreenshot)
	}
	return out
}
