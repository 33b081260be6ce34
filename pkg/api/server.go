// Package api exposes the REST and WebSocket surface of the control
// plane.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/database"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/progress"
	"github.com/ai-council/councild/pkg/queue"
	"github.com/ai-council/councild/pkg/registry"
)

// RequestAPI is the request lifecycle surface the handlers consume.
// Implemented by services.RequestService.
type RequestAPI interface {
	Submit(ctx context.Context, principal string, role config.Role, submit models.SubmitRequest) (*models.Request, error)
	Get(ctx context.Context, requestID string) (*models.Request, error)
	History(ctx context.Context, filters models.RequestFilters) (*models.RequestListResponse, error)
	Cancel(ctx context.Context, requestID string) (*models.Request, error)
}

// OutcomeAPI reads persisted results. Implemented by
// services.OutcomeService.
type OutcomeAPI interface {
	Result(ctx context.Context, requestID string) (*models.FinalResponse, error)
}

// Server wires the HTTP handlers to the service layer.
type Server struct {
	cfg       *config.Config
	requests  RequestAPI
	outcomes  OutcomeAPI
	estimator *cost.Estimator
	registry  *registry.Registry
	breakers  *breaker.Manager
	bus       *progress.Bus
	pool      *queue.WorkerPool
	db        *database.Client
	redis     redis.UniversalClient
}

// NewServer creates a new API server.
func NewServer(
	cfg *config.Config,
	requests RequestAPI,
	outcomes OutcomeAPI,
	estimator *cost.Estimator,
	reg *registry.Registry,
	breakers *breaker.Manager,
	bus *progress.Bus,
	pool *queue.WorkerPool,
	db *database.Client,
	redisClient redis.UniversalClient,
) *Server {
	return &Server{
		cfg:       cfg,
		requests:  requests,
		outcomes:  outcomes,
		estimator: estimator,
		registry:  reg,
		breakers:  breakers,
		bus:       bus,
		pool:      pool,
		db:        db,
		redis:     redisClient,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), identity())

	v1 := r.Group("/api/v1")
	v1.POST("/requests", s.submitRequestHandler)
	v1.GET("/requests", s.listRequestsHandler)
	v1.GET("/requests/:id", s.getRequestHandler)
	v1.GET("/requests/:id/result", s.getResultHandler)
	v1.POST("/requests/:id/cancel", s.cancelRequestHandler)
	v1.GET("/estimate", s.estimateHandler)
	v1.GET("/providers", s.listProvidersHandler)

	r.GET("/health", s.healthHandler)
	r.GET("/ws/:id", s.progressStreamHandler)

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
