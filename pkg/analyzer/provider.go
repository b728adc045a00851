package analyzer

import (
	"context"
	"time"
)

// Provider is the abstract interface the Hybrid Analyzer dispatches across, in
// configured order (§4.4). Grounded on ppiankov-entropia's llm.Provider interface,
// generalized from free-text summarization to a structured governance opinion.
type Provider interface {
	// Name returns the provider's identifier, used as Analysis.Provider.
	Name() string
	// Analyze sends prompt to the provider and returns its raw text response.
	// The caller (Analyzer) is responsible for schema parsing and repair.
	Analyze(ctx context.Context, prompt string) (string, error)
	// IsAvailable reports whether the provider is configured and reachable.
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration, generalized from ppiankov-entropia's
// llm.Config to this domain's schema-constrained, low-temperature calls.
type Config struct {
	Provider  string // "anthropic", "openai", "local" (Ollama)
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

// DefaultConfig returns sensible per-provider defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   45 * time.Second, // matches §5's "LLM call 45 s" suspension-point budget
		MaxTokens: 1500,
	}
}
