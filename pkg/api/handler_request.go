package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
)

// submitRequestHandler handles POST /api/v1/requests.
func (s *Server) submitRequestHandler(c *gin.Context) {
	var body models.SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	principal, role := caller(c)
	req, err := s.requests.Submit(c.Request.Context(), principal, role, body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, req)
}

// getRequestHandler handles GET /api/v1/requests/:id.
func (s *Server) getRequestHandler(c *gin.Context) {
	req, err := s.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// getResultHandler handles GET /api/v1/requests/:id/result. The final
// response exists only for completed requests; anything in flight
// reports its status instead.
func (s *Server) getResultHandler(c *gin.Context) {
	requestID := c.Param("id")
	req, err := s.requests.Get(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	switch req.Status {
	case models.StatusCompleted:
		final, err := s.outcomes.Result(c.Request.Context(), requestID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, final)
	case models.StatusFailed, models.StatusCancelled, models.StatusTimedOut:
		c.JSON(http.StatusOK, gin.H{
			"request_id":    req.ID,
			"status":        req.Status,
			"error_message": req.ErrorMessage,
		})
	default:
		c.JSON(http.StatusAccepted, gin.H{
			"request_id": req.ID,
			"status":     req.Status,
		})
	}
}

// cancelRequestHandler handles POST /api/v1/requests/:id/cancel.
func (s *Server) cancelRequestHandler(c *gin.Context) {
	requestID := c.Param("id")
	req, err := s.requests.Cancel(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	// If the request runs on this pod, cancel it immediately instead of
	// waiting for its worker's heartbeat poll.
	if s.pool != nil {
		s.pool.CancelRequest(requestID)
	}

	c.JSON(http.StatusAccepted, req)
}

// listRequestsHandler handles GET /api/v1/requests. Non-admin callers
// see only their own history.
func (s *Server) listRequestsHandler(c *gin.Context) {
	principal, role := caller(c)

	filters := models.RequestFilters{Principal: principal}
	if role == config.RoleAdmin {
		filters.Principal = c.Query("principal")
	}

	if v := c.Query("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			filters.Page = p
		}
	}
	if v := c.Query("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 {
			filters.PageSize = ps
		}
	}
	if v := c.Query("mode"); v != "" {
		mode := config.ExecutionMode(v)
		if !mode.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode: " + v})
			return
		}
		filters.Mode = mode
	}
	if v := c.Query("status"); v != "" {
		filters.Status = models.RequestStatus(v)
	}
	filters.PromptLike = c.Query("q")
	if v := c.Query("created_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid created_after: must be RFC3339"})
			return
		}
		filters.CreatedAfter = &t
	}
	if v := c.Query("created_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid created_before: must be RFC3339"})
			return
		}
		filters.CreatedBefore = &t
	}

	result, err := s.requests.History(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
