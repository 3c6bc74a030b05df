package models

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// Plan names a built-in plan ("integration", "layout", "redesign").
	// Ignored when Steps is non-empty.
	Plan string `json:"plan,omitempty"`

	// Steps is an inline plan. When set, Name labels it.
	Steps []Step `json:"steps,omitempty" binding:"omitempty,max=100"`
	Name  string `json:"name,omitempty"`

	// BaseURL overrides the server the URL steps are resolved against.
	BaseURL string `json:"base_url,omitempty" binding:"omitempty,url"`

	// SiteDir selects a subdirectory of the server's site directory for
	// File steps.
	SiteDir string `json:"site_dir,omitempty"`

	// TextSnapshots writes a Markdown rendition next to each screenshot.
	TextSnapshots bool `json:"text_snapshots,omitempty"`

	// WebhookURL receives a run.completed or run.failed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *RunRequest) Defaults() {
	if r.Plan == "" && len(r.Steps) == 0 {
		r.Plan = "integration"
	}
	if len(r.Steps) > 0 && r.Name == "" {
		r.Name = "inline"
	}
}
