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

const defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceClient speaks the serverless Inference API. The free tier
// reports no token usage, so counts are always estimated.
type HuggingFaceClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHuggingFace creates an Inference API client.
func NewHuggingFace(apiKey string) *HuggingFaceClient {
	return &HuggingFaceClient{
		baseURL: defaultHuggingFaceBaseURL,
		apiKey:  apiKey,
		http:    newHTTPClient(),
	}
}

// Name returns the provider key.
func (c *HuggingFaceClient) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters *struct {
		MaxNewTokens int     `json:"max_new_tokens,omitempty"`
		Temperature  float64 `json:"temperature,omitempty"`
	} `json:"parameters,omitempty"`
}

// Generate runs one text-generation call.
func (c *HuggingFaceClient) Generate(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(hfRequest{Inputs: req.Prompt})
	if err != nil {
		return nil, newError("huggingface", KindInvalid, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+req.Model, bytes.NewReader(payload))
	if err != nil {
		return nil, newError("huggingface", KindInvalid, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, wrapTransportErr("huggingface", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, wrapTransportErr("huggingface", err)
	}
	// 503 while the model is loading counts as a retryable server error.
	if resp.StatusCode != http.StatusOK {
		return nil, newError("huggingface", classifyStatus(resp.StatusCode),
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	var parsed []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, newError("huggingface", KindServer, fmt.Sprintf("malformed response: %v", err))
	}
	if len(parsed) == 0 {
		return nil, newError("huggingface", KindServer, "empty generation")
	}

	content := parsed[0].GeneratedText
	return &Result{
		Content:         content,
		InputTokens:     estimateTokens(req.Prompt),
		OutputTokens:    estimateTokens(content),
		TokensEstimated: true,
	}, nil
}

// HealthCheck probes the API root.
func (c *HuggingFaceClient) HealthCheck(ctx context.Context) registry.HealthStatus {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
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
