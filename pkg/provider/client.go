package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/ai-council/councild/pkg/registry"
)

// Request is one generation call. Model is the provider-side model name,
// not the registry id.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Result is a successful generation with usage accounting.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int

	// TokensEstimated is set when the provider returned no usage block
	// and counts were derived from content length.
	TokensEstimated bool
}

// Client is one provider's wire adapter.
type Client interface {
	// Name returns the provider key, e.g. "groq".
	Name() string

	// Generate runs one completion. Failures are returned as *Error.
	Generate(ctx context.Context, req Request) (*Result, error)

	// HealthCheck probes the provider cheaply.
	HealthCheck(ctx context.Context) registry.HealthStatus
}

// estimateTokens approximates a token count from text length when the
// provider does not report usage. Four characters per token.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// newHTTPClient builds the shared http.Client. Per-call deadlines come
// from the request context; the client timeout is a safety net only.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
	}
}

// healthFromResponse maps a probe response to a health status.
func healthFromResponse(status int, err error) registry.HealthStatus {
	if err != nil {
		return registry.HealthDown
	}
	switch {
	case status >= 200 && status < 300:
		return registry.HealthHealthy
	case status == 429 || status >= 500:
		return registry.HealthDegraded
	default:
		return registry.HealthDown
	}
}
