package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ai-council/councild/pkg/registry"
)

// OllamaClient speaks the local Ollama generate API.
type OllamaClient struct {
	endpoint string
	http     *http.Client
}

// NewOllama creates a client for a local Ollama endpoint, e.g.
// http://localhost:11434.
func NewOllama(endpoint string) *OllamaClient {
	return &OllamaClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     newHTTPClient(),
	}
}

// Name returns the provider key.
func (c *OllamaClient) Name() string { return "ollama" }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate runs one non-streaming generation.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
	})
	if err != nil {
		return nil, newError("ollama", KindInvalid, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, newError("ollama", KindInvalid, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, wrapTransportErr("ollama", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, wrapTransportErr("ollama", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError("ollama", classifyStatus(resp.StatusCode),
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, newError("ollama", KindServer, fmt.Sprintf("malformed response: %v", err))
	}

	result := &Result{
		Content:      parsed.Response,
		InputTokens:  parsed.PromptEvalCount,
		OutputTokens: parsed.EvalCount,
	}
	if result.InputTokens == 0 && result.OutputTokens == 0 {
		result.InputTokens = estimateTokens(req.Prompt)
		result.OutputTokens = estimateTokens(parsed.Response)
		result.TokensEstimated = true
	}
	return result, nil
}

// HealthCheck probes the local tags endpoint.
func (c *OllamaClient) HealthCheck(ctx context.Context) registry.HealthStatus {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return healthFromResponse(0, err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return healthFromResponse(0, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return healthFromResponse(resp.StatusCode, nil)
}
