package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/plan"
	"github.com/use-agent/pageshot/store"
	"github.com/use-agent/pageshot/worker"
)

// RunDefaults are the server-side settings a run request may override.
type RunDefaults struct {
	Params        plan.Params
	TextSnapshots bool
}

// PostRun returns a handler for POST /api/v1/runs.
//
//  1. Bind and default the request.
//  2. Pick the built-in plan or build one from the inline steps.
//  3. Validate, keep every path inside the server directories, then
//     resolve into <output dir>/<run id>.
//  4. Enqueue and answer 202 with the run ID.
func PostRun(w *worker.Worker, defaults RunDefaults) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		req.Defaults()

		p, err := planFor(&req)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := plan.Validate(p); err != nil {
			respondError(c, err)
			return
		}
		if err := plan.Confine(p); err != nil {
			respondError(c, err)
			return
		}

		id := uuid.NewString()
		params := defaults.Params
		if req.BaseURL != "" {
			params.BaseURL = req.BaseURL
		}
		if req.SiteDir != "" {
			dir, err := plan.SubDir(defaults.Params.SiteDir, req.SiteDir)
			if err != nil {
				respondError(c, err)
				return
			}
			params.SiteDir = dir
		}
		params.OutputDir = filepath.Join(params.OutputDir, id)

		resolved, err := plan.Resolve(p, params)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := plan.CheckContained(resolved, defaults.Params.SiteDir); err != nil {
			respondError(c, err)
			return
		}

		job := &worker.Job{
			ID:            id,
			Plan:          resolved,
			WebhookURL:    req.WebhookURL,
			TextSnapshots: req.TextSnapshots || defaults.TextSnapshots,
		}
		if err := w.Submit(job); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.RunResponse{
			ID:     id,
			Status: models.JobQueued,
			Plan:   resolved.Name,
			Steps:  len(resolved.Steps),
		})
	}
}

func planFor(req *models.RunRequest) (*models.Plan, error) {
	if len(req.Steps) > 0 {
		return &models.Plan{Name: req.Name, Steps: req.Steps}, nil
	}
	return plan.Builtin(req.Plan)
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := st.Get(c.Param("id"))
		if !ok {
			abort(c, http.StatusNotFound, models.ErrCodeNotFound, "run not found")
			return
		}

		resp := models.RunStatusResponse{
			ID:     job.ID,
			Status: job.Status,
			Report: job.Report,
			Error:  job.Error,
		}
		if job.Plan != nil {
			resp.Plan = job.Plan.Name
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetArtifact returns a handler for GET /api/v1/runs/:id/artifacts/:name.
// It serves files from the run's output directory; name must be a bare file
// name.
func GetArtifact(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := st.Get(c.Param("id"))
		if !ok || job.Plan == nil {
			abort(c, http.StatusNotFound, models.ErrCodeNotFound, "run not found")
			return
		}

		name := c.Param("name")
		if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "artifact name must be a plain file name")
			return
		}

		path := filepath.Join(job.Plan.OutputDir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			abort(c, http.StatusNotFound, models.ErrCodeNotFound, "artifact not found")
			return
		}
		c.File(path)
	}
}
