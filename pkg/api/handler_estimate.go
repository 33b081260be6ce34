package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// estimateHandler handles GET /api/v1/estimate?length=N. It returns
// cost and time estimates for all three execution modes so clients can
// present the tradeoff before submitting.
func (s *Server) estimateHandler(c *gin.Context) {
	lengthParam := c.Query("length")
	if lengthParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "length query parameter is required"})
		return
	}
	length, err := strconv.Atoi(lengthParam)
	if err != nil || length < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "length must be a positive integer"})
		return
	}

	estimates := s.estimator.EstimateAll(c.Request.Context(), length)
	c.JSON(http.StatusOK, gin.H{
		"length":    length,
		"estimates": estimates,
	})
}
