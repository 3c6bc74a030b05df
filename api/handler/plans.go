package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageshot/plan"
)

// ListPlans returns a handler for GET /api/v1/plans.
func ListPlans() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plans": plan.Infos()})
	}
}
