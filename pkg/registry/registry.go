package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/ai-council/councild/pkg/config"
)

var (
	// ErrModelNotFound indicates the model id is not in the registry
	ErrModelNotFound = errors.New("model not found")

	// ErrNoProviders indicates no provider credentials are configured
	ErrNoProviders = errors.New("no providers available")
)

// credentialEnv maps each provider to the environment variable that
// unlocks it. Ollama needs an endpoint instead of a key.
var credentialEnv = map[string]string{
	"groq":        "GROQ_API_KEY",
	"together":    "TOGETHER_API_KEY",
	"openrouter":  "OPENROUTER_API_KEY",
	"huggingface": "HUGGINGFACE_API_KEY",
	"gemini":      "GEMINI_API_KEY",
	"openai":      "OPENAI_API_KEY",
	"qwen":        "QWEN_API_KEY",
	"ollama":      "OLLAMA_ENDPOINT",
}

// HealthStatus is a provider's probe result.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// availabilityScore converts a health status into the [0,1] availability
// term used by routing.
func availabilityScore(s HealthStatus) float64 {
	switch s {
	case HealthHealthy:
		return 1.0
	case HealthDegraded:
		return 0.5
	default:
		return 0.0
	}
}

// Registry holds the models that are actually usable in this deployment:
// catalog entries whose provider has credentials, filtered by deployment
// mode. Provider health is tracked live and feeds routing availability.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	health map[string]HealthStatus // keyed by provider
}

// NewFromEnv builds the registry from the static catalog, keeping only
// models whose provider has credentials in the environment and which fit
// the deployment mode. Returns ErrNoProviders when nothing survives.
func NewFromEnv(cfg *config.RegistryConfig) (*Registry, error) {
	r := &Registry{
		models: make(map[string]*Model),
		health: make(map[string]HealthStatus),
	}

	skipped := make(map[string]string)
	for _, m := range Catalog() {
		env, known := credentialEnv[m.Provider]
		if !known {
			skipped[m.Provider] = "unknown provider"
			continue
		}
		if os.Getenv(env) == "" {
			skipped[m.Provider] = fmt.Sprintf("%s not set", env)
			continue
		}
		switch cfg.DeploymentMode {
		case config.DeploymentLocal:
			if !m.LocalOnly {
				continue
			}
		case config.DeploymentCloud:
			if m.LocalOnly {
				continue
			}
		}
		r.models[m.ID] = m
		if _, ok := r.health[m.Provider]; !ok {
			r.health[m.Provider] = HealthHealthy
		}
	}

	for provider, reason := range skipped {
		slog.Info("Provider unavailable", "provider", provider, "reason", reason)
	}

	if len(r.models) == 0 {
		return nil, ErrNoProviders
	}

	slog.Info("Model registry loaded",
		"models", len(r.models),
		"providers", len(r.health),
		"deployment_mode", cfg.DeploymentMode)

	return r, nil
}

// NewWithModels builds a registry from an explicit model list. Used by
// tests and by tools that bypass credential discovery.
func NewWithModels(models []*Model) *Registry {
	r := &Registry{
		models: make(map[string]*Model, len(models)),
		health: make(map[string]HealthStatus),
	}
	for _, m := range models {
		r.models[m.ID] = m
		if _, ok := r.health[m.Provider]; !ok {
			r.health[m.Provider] = HealthHealthy
		}
	}
	return r
}

// Get returns a model by id.
func (r *Registry) Get(id string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return m, nil
}

// All returns every loaded model, sorted by id for deterministic output.
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByTaskType returns the models supporting a task type, sorted by id.
func (r *Registry) ByTaskType(t config.TaskType) []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Model
	for _, m := range r.models {
		if m.Supports(t) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Providers returns the distinct providers backing the loaded models.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.health))
	for p := range r.health {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetHealth records a provider probe result.
func (r *Registry) SetHealth(provider string, status HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.health[provider]
	if !ok {
		return
	}
	if prev != status {
		slog.Warn("Provider health changed",
			"provider", provider, "from", prev, "to", status)
	}
	r.health[provider] = status
}

// Health returns a provider's last known health.
func (r *Registry) Health(provider string) HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.health[provider]; ok {
		return s
	}
	return HealthDown
}

// Availability returns the [0,1] availability term for a model, derived
// from its provider's health.
func (r *Registry) Availability(modelID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[modelID]
	if !ok {
		return 0
	}
	return availabilityScore(r.health[m.Provider])
}
