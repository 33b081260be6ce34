package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ai-council/councild/pkg/orchestrator"
	"github.com/ai-council/councild/pkg/services"
)

// respondError maps service and orchestrator errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validErr.Message,
			"field": validErr.Field,
		})
		return
	}

	if oerr, ok := orchestrator.AsError(err); ok {
		switch oerr.Code {
		case orchestrator.CodeInvalidInput:
			c.JSON(http.StatusBadRequest, gin.H{"error": oerr.Message, "code": oerr.Code})
			return
		case orchestrator.CodeRateLimited:
			retryAfter := int(math.Ceil(oerr.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       oerr.Message,
				"code":        oerr.Code,
				"retry_after": retryAfter,
			})
			return
		case orchestrator.CodeNoProviders:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": oerr.Message, "code": oerr.Code})
			return
		}
	}

	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if errors.Is(err, services.ErrNotCancellable) {
		c.JSON(http.StatusConflict, gin.H{"error": "request is not in a cancellable state"})
		return
	}

	slog.Error("Unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
