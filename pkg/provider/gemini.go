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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient speaks the Google AI generateContent API.
type GeminiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGemini creates a Google AI client.
func NewGemini(apiKey string) *GeminiClient {
	return &GeminiClient{
		baseURL: defaultGeminiBaseURL,
		apiKey:  apiKey,
		http:    newHTTPClient(),
	}
}

// Name returns the provider key.
func (c *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate runs one generateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Result, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newError("gemini", KindInvalid, err.Error())
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, newError("gemini", KindInvalid, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, wrapTransportErr("gemini", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, wrapTransportErr("gemini", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError("gemini", classifyStatus(resp.StatusCode),
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, newError("gemini", KindServer, fmt.Sprintf("malformed response: %v", err))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, newError("gemini", KindServer, "empty candidates")
	}

	content := parsed.Candidates[0].Content.Parts[0].Text
	result := &Result{
		Content:      content,
		InputTokens:  parsed.UsageMetadata.PromptTokenCount,
		OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
	}
	if result.InputTokens == 0 && result.OutputTokens == 0 {
		result.InputTokens = estimateTokens(req.Prompt)
		result.OutputTokens = estimateTokens(content)
		result.TokensEstimated = true
	}
	return result, nil
}

// HealthCheck probes the model listing endpoint.
func (c *GeminiClient) HealthCheck(ctx context.Context) registry.HealthStatus {
	url := fmt.Sprintf("%s/models?key=%s", c.baseURL, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
