package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ai-council/councild/pkg/registry"
)

// OpenAICompatClient speaks the OpenAI chat-completions dialect. Groq,
// Together, OpenRouter, Qwen (DashScope compatible mode), and OpenAI
// itself all serve it, differing only in base URL and key.
type OpenAICompatClient struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
}

// NewOpenAICompat creates a chat-completions client.
func NewOpenAICompat(providerName, baseURL, apiKey string) *OpenAICompatClient {
	return &OpenAICompatClient{
		provider: providerName,
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     newHTTPClient(),
	}
}

// Name returns the provider key.
func (c *OpenAICompatClient) Name() string { return c.provider }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate runs one chat completion.
func (c *OpenAICompatClient) Generate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, newError(c.provider, KindInvalid, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, newError(c.provider, KindInvalid, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, wrapTransportErr(c.provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, wrapTransportErr(c.provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newError(c.provider, classifyStatus(resp.StatusCode),
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, newError(c.provider, KindServer, fmt.Sprintf("malformed response: %v", err))
	}
	if parsed.Error != nil {
		return nil, newError(c.provider, KindServer, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, newError(c.provider, KindServer, "empty choices")
	}

	content := parsed.Choices[0].Message.Content
	result := &Result{
		Content:      content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}
	if result.InputTokens == 0 && result.OutputTokens == 0 {
		result.InputTokens = estimateTokens(req.Prompt)
		result.OutputTokens = estimateTokens(content)
		result.TokensEstimated = true
	}
	return result, nil
}

// HealthCheck probes the models listing endpoint.
func (c *OpenAICompatClient) HealthCheck(ctx context.Context) registry.HealthStatus {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return healthFromResponse(0, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return healthFromResponse(0, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return healthFromResponse(resp.StatusCode, nil)
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}
