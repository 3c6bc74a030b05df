package models

// Job statuses for runs submitted to the server.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobPassed  = RunStatusPassed
	JobFailed  = RunStatusFailed
)

// RunJob tracks a run submitted through the API.
type RunJob struct {
	ID         string
	Status     string
	Plan       *Plan
	Report     *RunReport
	Error      *ErrorDetail
	WebhookURL string
	CreatedAt  int64 // unix timestamp
}

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Plan   string       `json:"plan,omitempty"`
	Steps  int          `json:"steps,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Plan   string       `json:"plan"`
	Report *RunReport   `json:"report,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// PlanInfo describes a built-in plan for GET /api/v1/plans.
type PlanInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "degraded"
	Uptime     string `json:"uptime"`
	QueueDepth int    `json:"queue_depth"`
	QueueCap   int    `json:"queue_capacity"`
	Busy       bool   `json:"busy"`
	Version    string `json:"version"`
}

// ErrorResponse is the body of every rejected API request.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
