package analyzer

import (
	"context"
	"time"

	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
)

// Pipeline composes the Analysis Cache (§4.3) with the Hybrid Analyzer (§4.4)
// into the single entry point the Advice Fan-out calls: GetOrCompute keyed by
// the proposal's fingerprint, falling back to Analyze on a cache miss.
type Pipeline struct {
	cache    *analysis.Cache
	analyzer *Analyzer
}

// NewPipeline wires a cache and an analyzer together.
func NewPipeline(cache *analysis.Cache, analyzer *Analyzer) *Pipeline {
	return &Pipeline{cache: cache, analyzer: analyzer}
}

// GetOrCompute returns the cached Analysis for p's fingerprint, computing one
// via the Hybrid Analyzer on a miss (§4.6 step 2: "analysis is per proposal,
// not per subscriber — the Policy enters the prompt but the cache key is the
// proposal fingerprint").
func (p *Pipeline) GetOrCompute(ctx context.Context, proposal chain.Proposal, chainName string, policy subscriber.Policy) (analysis.Analysis, error) {
	fp := analysis.ComputeFingerprint(proposal.ChainID, proposal.ProposalID, proposal.Title, proposal.Status)

	return p.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (analysis.Analysis, error) {
		a := p.analyzer.Analyze(ctx, proposal, chainName, policy)
		a.CreatedAt = time.Now()
		a.ExpiresAt = a.CreatedAt.Add(analysis.TTL(proposal.Status))
		return a, nil
	})
}
