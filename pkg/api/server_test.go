package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/orchestrator"
	"github.com/ai-council/councild/pkg/progress"
	"github.com/ai-council/councild/pkg/registry"
	"github.com/ai-council/councild/pkg/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRequests is an in-memory RequestAPI for handler tests.
type fakeRequests struct {
	byID      map[string]*models.Request
	submitErr error
	history   *models.RequestListResponse
	filters   models.RequestFilters
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{byID: make(map[string]*models.Request)}
}

func (f *fakeRequests) Submit(_ context.Context, principal string, role config.Role, submit models.SubmitRequest) (*models.Request, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	req := &models.Request{
		ID:        "req-1",
		Principal: principal,
		Role:      role,
		Prompt:    submit.Prompt,
		Mode:      submit.Mode,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}
	f.byID[req.ID] = req
	return req, nil
}

func (f *fakeRequests) Get(_ context.Context, requestID string) (*models.Request, error) {
	req, ok := f.byID[requestID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return req, nil
}

func (f *fakeRequests) History(_ context.Context, filters models.RequestFilters) (*models.RequestListResponse, error) {
	f.filters = filters
	if f.history != nil {
		return f.history, nil
	}
	return &models.RequestListResponse{Requests: []*models.Request{}, Page: 1, PageSize: 10}, nil
}

func (f *fakeRequests) Cancel(_ context.Context, requestID string) (*models.Request, error) {
	req, ok := f.byID[requestID]
	if !ok {
		return nil, services.ErrNotFound
	}
	if req.Status.IsTerminal() {
		return nil, services.ErrNotCancellable
	}
	req.Status = models.StatusCancelled
	return req, nil
}

// fakeOutcomes is an in-memory OutcomeAPI.
type fakeOutcomes struct {
	byID map[string]*models.FinalResponse
}

func (f *fakeOutcomes) Result(_ context.Context, requestID string) (*models.FinalResponse, error) {
	final, ok := f.byID[requestID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return final, nil
}

func testModel(id, provider string) *registry.Model {
	return &registry.Model{
		ID:                id,
		Provider:          provider,
		Name:              id,
		Capabilities:      []config.TaskType{config.TaskReasoning},
		InputTokenCost:    1e-6,
		OutputTokenCost:   2e-6,
		AvgLatencySeconds: 1.0,
		MaxContext:        8192,
		Reliability:       0.95,
	}
}

func newTestServer(t *testing.T, requests *fakeRequests, outcomes *fakeOutcomes) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	reg := registry.NewWithModels([]*registry.Model{
		testModel("alpha-1", "alpha"),
		testModel("beta-1", "beta"),
	})
	breakers := breaker.NewManager(breaker.Settings{})
	bus := progress.NewBus(progress.NewMemoryStore(), cfg.Progress)
	estimator := cost.NewEstimator(reg, cfg.Cost, nil)
	if outcomes == nil {
		outcomes = &fakeOutcomes{byID: make(map[string]*models.FinalResponse)}
	}
	return NewServer(cfg, requests, outcomes, estimator, reg, breakers, bus, nil, nil, nil)
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestSubmitRequest(t *testing.T) {
	requests := newFakeRequests()
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/requests",
		`{"prompt":"What is the capital of France?","mode":"FAST"}`,
		map[string]string{"X-Principal": "alice", "X-Role": "authenticated"})

	require.Equal(t, http.StatusAccepted, w.Code)
	var req models.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &req))
	assert.Equal(t, "alice", req.Principal)
	assert.Equal(t, config.RoleAuthenticated, req.Role)
	assert.Equal(t, config.ModeFast, req.Mode)
	assert.Equal(t, models.StatusPending, req.Status)
}

func TestSubmitRequest_UnknownRoleDegradesToDemo(t *testing.T) {
	requests := newFakeRequests()
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/requests",
		`{"prompt":"hello there friend"}`,
		map[string]string{"X-Role": "superuser"})

	require.Equal(t, http.StatusAccepted, w.Code)
	var req models.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &req))
	assert.Equal(t, "anonymous", req.Principal)
	assert.Equal(t, config.RoleDemo, req.Role)
}

func TestSubmitRequest_ValidationError(t *testing.T) {
	requests := newFakeRequests()
	requests.submitErr = services.NewValidationError("prompt", "length must be between 1 and 5000 characters")
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/requests", `{"prompt":""}`, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "prompt")
}

func TestSubmitRequest_RateLimited(t *testing.T) {
	requests := newFakeRequests()
	limited := orchestrator.NewError(orchestrator.CodeRateLimited, "rate limit of 3 requests per hour exceeded")
	limited.RetryAfter = 90 * time.Second
	requests.submitErr = limited
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/requests", `{"prompt":"hi"}`, nil)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(90), body["retry_after"])
}

func TestSubmitRequest_NoProviders(t *testing.T) {
	requests := newFakeRequests()
	requests.submitErr = orchestrator.NewError(orchestrator.CodeNoProviders, "no providers available")
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/requests", `{"prompt":"hi"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetRequest_NotFound(t *testing.T) {
	s := newTestServer(t, newFakeRequests(), nil)
	w := doRequest(s, http.MethodGet, "/api/v1/requests/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetResult_ByStatus(t *testing.T) {
	requests := newFakeRequests()
	outcomes := &fakeOutcomes{byID: map[string]*models.FinalResponse{
		"done": {RequestID: "done", Content: "Paris.", OverallConfidence: 0.9},
	}}
	requests.byID["done"] = &models.Request{ID: "done", Status: models.StatusCompleted}
	requests.byID["running"] = &models.Request{ID: "running", Status: models.StatusInProgress}
	msg := "all provider calls failed"
	requests.byID["broken"] = &models.Request{ID: "broken", Status: models.StatusFailed, ErrorMessage: &msg}
	s := newTestServer(t, requests, outcomes)

	w := doRequest(s, http.MethodGet, "/api/v1/requests/done/result", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var final models.FinalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &final))
	assert.Equal(t, "Paris.", final.Content)

	w = doRequest(s, http.MethodGet, "/api/v1/requests/running/result", "", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "in_progress")

	w = doRequest(s, http.MethodGet, "/api/v1/requests/broken/result", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "all provider calls failed")
}

func TestCancelRequest(t *testing.T) {
	requests := newFakeRequests()
	requests.byID["req-1"] = &models.Request{ID: "req-1", Status: models.StatusPending}
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/requests/req-1/cancel", "", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "cancelled")

	// A second cancel finds the request terminal.
	w = doRequest(s, http.MethodPost, "/api/v1/requests/req-1/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListRequests_ScopesNonAdminToOwnHistory(t *testing.T) {
	requests := newFakeRequests()
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/requests?principal=bob&mode=FAST&page=2", "",
		map[string]string{"X-Principal": "alice", "X-Role": "authenticated"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", requests.filters.Principal)
	assert.Equal(t, config.ModeFast, requests.filters.Mode)
	assert.Equal(t, 2, requests.filters.Page)
}

func TestListRequests_AdminMayFilterAnyPrincipal(t *testing.T) {
	requests := newFakeRequests()
	s := newTestServer(t, requests, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/requests?principal=bob", "",
		map[string]string{"X-Principal": "root", "X-Role": "admin"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", requests.filters.Principal)
}

func TestListRequests_InvalidMode(t *testing.T) {
	s := newTestServer(t, newFakeRequests(), nil)
	w := doRequest(s, http.MethodGet, "/api/v1/requests?mode=TURBO", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEstimate(t *testing.T) {
	s := newTestServer(t, newFakeRequests(), nil)

	w := doRequest(s, http.MethodGet, "/api/v1/estimate?length=400", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Length    int                             `json:"length"`
		Estimates map[string]*models.CostEstimate `json:"estimates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 400, body.Length)
	require.Len(t, body.Estimates, 3)

	fast := body.Estimates[string(config.ModeFast)]
	balanced := body.Estimates[string(config.ModeBalanced)]
	best := body.Estimates[string(config.ModeBestQuality)]
	require.NotNil(t, fast)
	require.NotNil(t, balanced)
	require.NotNil(t, best)
	assert.LessOrEqual(t, fast.EstimatedCost, balanced.EstimatedCost)
	assert.LessOrEqual(t, balanced.EstimatedCost, best.EstimatedCost)
}

func TestEstimate_RequiresLength(t *testing.T) {
	s := newTestServer(t, newFakeRequests(), nil)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/v1/estimate", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/v1/estimate?length=-3", "", nil).Code)
}

func TestListProviders(t *testing.T) {
	s := newTestServer(t, newFakeRequests(), nil)

	w := doRequest(s, http.MethodGet, "/api/v1/providers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Providers []providerStatus  `json:"providers"`
		Models    []*registry.Model `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Providers, 2)
	assert.Len(t, body.Models, 2)
	for _, p := range body.Providers {
		assert.Equal(t, string(breaker.StateClosed), p.Breaker)
		assert.Equal(t, 1, p.Models)
	}
}

func TestHealth_NoDependencies(t *testing.T) {
	// With db, redis, and pool absent the endpoint reports healthy on
	// what remains.
	s := newTestServer(t, newFakeRequests(), nil)
	w := doRequest(s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestProgressStream_UnknownRequest(t *testing.T) {
	s := newTestServer(t, newFakeRequests(), nil)
	w := doRequest(s, http.MethodGet, "/ws/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgressStream_InvalidSinceSeq(t *testing.T) {
	requests := newFakeRequests()
	requests.byID["req-1"] = &models.Request{ID: "req-1", Status: models.StatusInProgress}
	s := newTestServer(t, requests, nil)
	w := doRequest(s, http.MethodGet, "/ws/req-1?since_seq=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondError_Unexpected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
