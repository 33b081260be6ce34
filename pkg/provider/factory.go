package provider

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ai-council/councild/pkg/registry"
)

// Base URLs for the OpenAI-compatible family.
const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	togetherBaseURL   = "https://api.together.xyz/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIBaseURL     = "https://api.openai.com/v1"
	qwenBaseURL       = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
)

// Factory builds and caches one client per provider, reading credentials
// from the environment at construction time.
type Factory struct {
	mu      sync.Mutex
	clients map[string]Client
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{clients: make(map[string]Client)}
}

// ForProvider returns the client for a provider key, constructing it on
// first use.
func (f *Factory) ForProvider(name string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[name]; ok {
		return c, nil
	}
	c, err := build(name)
	if err != nil {
		return nil, err
	}
	f.clients[name] = c
	return c, nil
}

// Probe implements registry.ProbeFunc on top of the cached clients.
func (f *Factory) Probe(ctx context.Context, providerName string) registry.HealthStatus {
	c, err := f.ForProvider(providerName)
	if err != nil {
		return registry.HealthDown
	}
	return c.HealthCheck(ctx)
}

func build(name string) (Client, error) {
	switch name {
	case "groq":
		return NewOpenAICompat(name, groqBaseURL, os.Getenv("GROQ_API_KEY")), nil
	case "together":
		return NewOpenAICompat(name, togetherBaseURL, os.Getenv("TOGETHER_API_KEY")), nil
	case "openrouter":
		return NewOpenAICompat(name, openRouterBaseURL, os.Getenv("OPENROUTER_API_KEY")), nil
	case "openai":
		return NewOpenAICompat(name, openAIBaseURL, os.Getenv("OPENAI_API_KEY")), nil
	case "qwen":
		return NewOpenAICompat(name, qwenBaseURL, os.Getenv("QWEN_API_KEY")), nil
	case "gemini":
		return NewGemini(os.Getenv("GEMINI_API_KEY")), nil
	case "huggingface":
		return NewHuggingFace(os.Getenv("HUGGINGFACE_API_KEY")), nil
	case "ollama":
		return NewOllama(os.Getenv("OLLAMA_ENDPOINT")), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
