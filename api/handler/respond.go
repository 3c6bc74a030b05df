package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/worker"
)

// respondError maps err to an HTTP status and writes a structured error body.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, worker.ErrClosed) {
		err = models.NewVerificationError(models.ErrCodeQueueFull, "", "server is shutting down", err)
	}
	ve := models.AsVerificationError(err)
	c.JSON(statusFor(ve.Code), models.ErrorResponse{Error: ve.ToDetail()})
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: code, Message: msg},
	})
}

func statusFor(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeQueueFull:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
