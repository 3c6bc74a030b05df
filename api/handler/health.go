package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/worker"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status degrades once the run queue is at least 80% full.
func Health(w *worker.Worker, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		depth, capacity, busy := w.Stats()

		status := "healthy"
		if capacity > 0 && float64(depth) >= float64(capacity)*0.8 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			QueueDepth: depth,
			QueueCap:   capacity,
			Busy:       busy,
			Version:    Version,
		})
	}
}
