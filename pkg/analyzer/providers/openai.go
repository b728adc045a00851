package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govsentinel/sentinel/pkg/analyzer"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements analyzer.Provider using the Chat Completions API in JSON mode.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI constructs an OpenAI-backed Provider.
func NewOpenAI(cfg analyzer.Config) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Analyze requests a JSON-mode completion so the model is constrained to emit
// a single JSON object matching the schema described in the prompt's preamble.
func (p *OpenAI) Analyze(ctx context.Context, prompt string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.1,
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.HTTPStatusCode == 429:
				return "", fmt.Errorf("%w: openai 429: %v", analyzer.ErrRateLimited, err)
			case apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500:
				return "", fmt.Errorf("%w: openai %d: %v", analyzer.ErrPermanent, apiErr.HTTPStatusCode, err)
			}
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in openai response", analyzer.ErrPermanent)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
