// Package providers holds concrete analyzer.Provider implementations,
// adapted from ppiankov-entropia's internal/llm package for structured
// governance opinions instead of free-text report summaries.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/govsentinel/sentinel/pkg/analyzer"
)

// Anthropic implements analyzer.Provider against the Messages API.
type Anthropic struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropic constructs an Anthropic-backed Provider.
func NewAnthropic(cfg analyzer.Config) *Anthropic {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Anthropic{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

// Analyze sends the prompt as a single user turn with a low temperature, since
// the caller wants a stable, schema-conforming JSON opinion rather than prose.
func (p *Anthropic) Analyze(ctx context.Context, prompt string) (string, error) {
	apiReq := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: anthropic 429", analyzer.ErrRateLimited)
	}
	if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
		var apiErr anthropicError
		_ = json.Unmarshal(respBody, &apiErr)
		return "", fmt.Errorf("%w: anthropic %d: %s", analyzer.ErrPermanent, httpResp.StatusCode, apiErr.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no content in anthropic response", analyzer.ErrPermanent)
	}

	return strings.TrimSpace(resp.Content[0].Text), nil
}
