package analyzer

import (
	"context"
	"time"

	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/retry"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	"go.uber.org/zap"
)

// Analyzer implements the Hybrid Analyzer (§4.4): a static, ordered provider list
// with per-provider transient/permanent classification, one schema-repair
// attempt, and a deterministic fallback Analysis when every provider fails.
// There is no intra-provider retry loop here: §4.4 moves to the next provider
// on transient error rather than retrying the same one, so the teacher's
// generic try/classify/retry helper (pkg/retry) has no seam to attach to —
// the fallback-to-next-provider chain itself is the retry-vs-fallback
// decision this component makes.
type Analyzer struct {
	providers []Provider
	logger    *zap.Logger
	sem       chan struct{} // bounds concurrent Analyze calls (C_llm, §4.8); nil means unbounded
}

// New builds an Analyzer trying providers in the given order (e.g. Anthropic,
// then OpenAI, then a local Ollama model), matching the spec's example ordering
// [primary, fast, local].
func New(providers []Provider, logger *zap.Logger) *Analyzer {
	return &Analyzer{providers: providers, logger: logger}
}

// SetConcurrency bounds the number of Analyze calls in flight at once, the
// Scheduler's realization of C_llm (§4.8.1). n<=0 removes the bound.
func (a *Analyzer) SetConcurrency(n int) {
	if n <= 0 {
		a.sem = nil
		return
	}
	a.sem = make(chan struct{}, n)
}

// fallbackAnalysis is the deterministic Analysis produced when every provider
// fails (§4.4): ABSTAIN, confidence 0, HIGH risk.
func fallbackAnalysis() (analysis.Recommendation, float64, string, analysis.RiskAssessment) {
	return analysis.RecommendAbstain, 0.0, "no provider available", analysis.RiskHigh
}

// Analyze produces an Analysis from a Proposal and a Policy (§4.4). It does not
// set Fingerprint, CreatedAt, or ExpiresAt — the Analysis Cache (§4.3) owns those.
func (a *Analyzer) Analyze(ctx context.Context, p chain.Proposal, chainName string, policy subscriber.Policy) analysis.Analysis {
	if a.sem != nil {
		select {
		case a.sem <- struct{}{}:
			defer func() { <-a.sem }()
		case <-ctx.Done():
			rec, confidence, reasoning, risk := fallbackAnalysis()
			return analysis.Analysis{Provider: "none", Recommendation: rec, Confidence: confidence, Reasoning: reasoning, RiskAssessment: risk}
		}
	}

	prompt := BuildPrompt(p, chainName, policy)

	for _, provider := range a.providers {
		rec, confidence, reasoning, risk, structured, providerName, ok := a.tryProvider(ctx, provider, prompt)
		if ok {
			return analysis.Analysis{
				Provider:       providerName,
				Recommendation: rec,
				Confidence:     confidence,
				Reasoning:      reasoning,
				RiskAssessment: risk,
				Structured:     structured,
			}
		}
	}

	rec, confidence, reasoning, risk := fallbackAnalysis()
	return analysis.Analysis{
		Provider:       "none",
		Recommendation: rec,
		Confidence:     confidence,
		Reasoning:      reasoning,
		RiskAssessment: risk,
	}
}

// tryProvider attempts one provider with its single repair pass. Transient
// errors are logged and treated as a failure to move on to the next provider,
// per §4.4 ("On transient error the next provider in the list is tried").
func (a *Analyzer) tryProvider(ctx context.Context, provider Provider, prompt string) (analysis.Recommendation, float64, string, analysis.RiskAssessment, map[string]any, string, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	raw, err := provider.Analyze(attemptCtx, prompt)
	if err != nil {
		a.logger.Warn("analyzer: provider call failed",
			zap.String("provider", provider.Name()),
			zap.String("classification", classificationLabel(classify(err))),
			zap.Error(err))
		return "", 0, "", "", nil, "", false
	}

	rec, confidence, reasoning, risk, structured, parseErr := ParseResult(raw)
	if parseErr == nil {
		return rec, confidence, reasoning, risk, structured, provider.Name(), true
	}

	a.logger.Info("analyzer: schema parse failed, requesting repair",
		zap.String("provider", provider.Name()), zap.Error(parseErr))

	repaired, err := provider.Analyze(attemptCtx, RepairPrompt(prompt, raw, parseErr.Error()))
	if err != nil {
		a.logger.Warn("analyzer: repair request failed", zap.String("provider", provider.Name()), zap.Error(err))
		return "", 0, "", "", nil, "", false
	}

	rec, confidence, reasoning, risk, structured, parseErr = ParseResult(repaired)
	if parseErr != nil {
		a.logger.Warn("analyzer: provider permanently failed after repair",
			zap.String("provider", provider.Name()), zap.Error(parseErr))
		return "", 0, "", "", nil, "", false
	}

	return rec, confidence, reasoning, risk, structured, provider.Name(), true
}

// classificationLabel renders a retry.Classification for structured logging;
// tryProvider itself never branches on the classification (§4.4 skips to the
// next provider on both transient and permanent error alike), but recording
// which kind of failure occurred is worth keeping in the logs.
func classificationLabel(c retry.Classification) string {
	switch c {
	case retry.Permanent:
		return "permanent"
	case retry.RateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}
