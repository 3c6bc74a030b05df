package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageshot/api/handler"
	"github.com/use-agent/pageshot/api/middleware"
	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/plan"
	"github.com/use-agent/pageshot/store"
	"github.com/use-agent/pageshot/worker"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(w *worker.Worker, st *store.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(w, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/plans", handler.ListPlans())

	defaults := handler.RunDefaults{
		Params:        plan.ParamsFromConfig(cfg.Runner),
		TextSnapshots: cfg.Runner.TextSnapshots,
	}
	protected.POST("/runs", handler.PostRun(w, defaults))
	protected.GET("/runs/:id", handler.GetRun(st))
	protected.GET("/runs/:id/artifacts/:name", handler.GetArtifact(st))

	return r
}
