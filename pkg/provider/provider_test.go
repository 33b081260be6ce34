package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-council/councild/pkg/registry"
)

func TestOpenAICompat_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello back"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAICompat("groq", srv.URL, "test-key")
	res, err := c.Generate(context.Background(), Request{Model: "llama3-70b-8192", Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hello back", res.Content)
	assert.Equal(t, 12, res.InputTokens)
	assert.Equal(t, 7, res.OutputTokens)
	assert.False(t, res.TokensEstimated)
}

func TestOpenAICompat_EstimatesTokensWhenUsageMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "four char groups here"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompat("groq", srv.URL, "k")
	res, err := c.Generate(context.Background(), Request{Model: "m", Prompt: "twelve chars"})
	require.NoError(t, err)

	assert.True(t, res.TokensEstimated)
	assert.Equal(t, len("twelve chars")/4, res.InputTokens)
	assert.Equal(t, len("four char groups here")/4, res.OutputTokens)
}

func TestOpenAICompat_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantKind      ErrorKind
		wantRetryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, KindRateLimit, true},
		{"unauthorized", http.StatusUnauthorized, KindAuth, false},
		{"forbidden", http.StatusForbidden, KindAuth, false},
		{"server error", http.StatusInternalServerError, KindServer, true},
		{"bad request", http.StatusBadRequest, KindInvalid, false},
		{"timeout status", http.StatusRequestTimeout, KindTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewOpenAICompat("openai", srv.URL, "k")
			_, err := c.Generate(context.Background(), Request{Model: "m", Prompt: "p"})
			require.Error(t, err)

			pe, ok := AsError(err)
			require.True(t, ok, "expected a typed provider error")
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.wantRetryable, pe.Retryable)
			assert.Equal(t, "openai", pe.Provider)
		})
	}
}

func TestOpenAICompat_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewOpenAICompat("groq", srv.URL, "k")
	_, err := c.Generate(ctx, Request{Model: "m", Prompt: "p"})
	require.Error(t, err)

	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, pe.Kind)
	assert.True(t, pe.Retryable)
}

func TestOpenAICompat_TransportError(t *testing.T) {
	// Nothing listens on this port.
	c := NewOpenAICompat("groq", "http://127.0.0.1:1", "k")
	_, err := c.Generate(context.Background(), Request{Model: "m", Prompt: "p"})
	require.Error(t, err)

	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, pe.Kind)
	assert.True(t, pe.Retryable)
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Write([]byte(`{"response": "local answer", "prompt_eval_count": 5, "eval_count": 9}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL)
	res, err := c.Generate(context.Background(), Request{Model: "llama2", Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "local answer", res.Content)
	assert.Equal(t, 5, res.InputTokens)
	assert.Equal(t, 9, res.OutputTokens)
}

func TestGemini_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "gemini says"}]}}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 4}
		}`))
	}))
	defer srv.Close()

	c := NewGemini("secret")
	c.baseURL = srv.URL
	res, err := c.Generate(context.Background(), Request{Model: "gemini-pro", Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "gemini says", res.Content)
	assert.Equal(t, 3, res.InputTokens)
	assert.Equal(t, 4, res.OutputTokens)
}

func TestHuggingFace_AlwaysEstimatesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"generated_text": "hf output text"}]`))
	}))
	defer srv.Close()

	c := NewHuggingFace("k")
	c.baseURL = srv.URL
	res, err := c.Generate(context.Background(), Request{Model: "mistralai/Mistral-7B-Instruct-v0.2", Prompt: "prompt"})
	require.NoError(t, err)

	assert.Equal(t, "hf output text", res.Content)
	assert.True(t, res.TokensEstimated)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   registry.HealthStatus
	}{
		{"ok is healthy", http.StatusOK, registry.HealthHealthy},
		{"rate limited is degraded", http.StatusTooManyRequests, registry.HealthDegraded},
		{"server error is degraded", http.StatusInternalServerError, registry.HealthDegraded},
		{"unauthorized is down", http.StatusUnauthorized, registry.HealthDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewOpenAICompat("groq", srv.URL, "k")
			assert.Equal(t, tt.want, c.HealthCheck(context.Background()))
		})
	}

	t.Run("unreachable is down", func(t *testing.T) {
		c := NewOllama("http://127.0.0.1:1")
		assert.Equal(t, registry.HealthDown, c.HealthCheck(context.Background()))
	})
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	c1, err := f.ForProvider("groq")
	require.NoError(t, err)
	c2, err := f.ForProvider("groq")
	require.NoError(t, err)
	assert.Same(t, c1, c2, "clients are cached per provider")

	for _, name := range []string{"together", "openrouter", "openai", "qwen", "gemini", "huggingface", "ollama"} {
		c, err := f.ForProvider(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	_, err = f.ForProvider("does-not-exist")
	assert.Error(t, err)
}
