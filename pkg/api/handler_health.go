package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ai-council/councild/pkg/database"
	"github.com/ai-council/councild/pkg/version"
)

// healthHandler handles GET /health: database, redis, and worker pool
// health in one view. Any unhealthy dependency degrades the overall
// status to 503.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	body := gin.H{"version": version.Full()}

	if s.db != nil {
		dbHealth, err := database.Health(ctx, s.db.DB.DB)
		body["database"] = dbHealth
		if err != nil {
			healthy = false
		}
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			body["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			body["redis"] = gin.H{"status": "healthy"}
		}
	}

	if s.pool != nil {
		poolHealth := s.pool.Health()
		body["pool"] = poolHealth
		if !poolHealth.IsHealthy {
			healthy = false
		}
	}

	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "healthy"
	c.JSON(http.StatusOK, body)
}
