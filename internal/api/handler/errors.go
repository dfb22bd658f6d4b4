package handler

import (
	"errors"
	"net/http"

	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/service"
	"github.com/gin-gonic/gin"
)

// writeServiceError maps service errors onto HTTP responses. Unknown errors
// are logged with detail and answered with a generic message.
func writeServiceError(c *gin.Context, err error) {
	var alreadyRunning *service.AlreadyRunningError
	var invalidTransition *service.InvalidTransitionError

	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &alreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": alreadyRunning.Error()})
	case errors.As(err, &invalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidTransition.Error()})
	case errors.Is(err, service.ErrNoKeywords):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromContext(c.Request.Context()).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
