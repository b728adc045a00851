package providers

import "github.com/govsentinel/sentinel/pkg/analyzer"

// Build constructs the concrete Provider named by cfg.Provider. Grounded on
// ppiankov-entropia's llm.Factory, which selects among the same three
// backends by string name.
func Build(cfg analyzer.Config) analyzer.Provider {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	case "local":
		return NewLocal(cfg)
	default:
		return NewAnthropic(cfg)
	}
}
