package advice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	"go.uber.org/zap"
)

// AnalysisSource produces a cached-or-computed Analysis for a proposal (the
// Analysis Cache, §4.3), keyed by Fingerprint but computed from the proposal.
type AnalysisSource interface {
	GetOrCompute(ctx context.Context, p chain.Proposal, chainName string, policy subscriber.Policy) (analysis.Analysis, error)
}

// Sink accepts a rendered Advice for hand-off to the Delivery Gate (§4.6 step 4).
type Sink interface {
	Deliver(ctx context.Context, a Advice, sub subscriber.Subscriber) error
}

// FanOut runs one (Proposal, Subscriber) pair through GetOrCompute+Render+Deliver
// for every eligible subscriber, embarrassingly parallel and bounded by a pond
// pool sized generously (§4.6.1) — the Delivery Gate's send semaphore is what
// actually enforces C_send.
type FanOut struct {
	analyses AnalysisSource
	sink     Sink
	logger   *zap.Logger
	poolSize int
}

// NewFanOut builds a FanOut with a pond pool of poolSize workers.
func NewFanOut(analyses AnalysisSource, sink Sink, logger *zap.Logger, poolSize int) *FanOut {
	if poolSize <= 0 {
		poolSize = 32
	}
	return &FanOut{analyses: analyses, sink: sink, logger: logger, poolSize: poolSize}
}

// Run fans a proposal out to every subscriber, returning the Advice values that
// were delivered plus the first error encountered, if any subscriber's pipeline
// failed.
func (f *FanOut) Run(ctx context.Context, p chain.Proposal, chainName string, subs []subscriber.Subscriber) ([]Advice, error) {
	pool := pond.NewPool(f.poolSize, pond.WithQueueSize(len(subs)+1))
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var mu sync.Mutex
	var rendered []Advice
	var firstErr error

	for _, sub := range subs {
		sub := sub
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			a, err := f.analyses.GetOrCompute(groupCtx, p, chainName, sub.Policy)
			if err != nil {
				f.logger.Error("advice fan-out: analysis failed", zap.String("subscriber", sub.SubscriberID), zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("analysis for subscriber %s: %w", sub.SubscriberID, err)
				}
				mu.Unlock()
				return
			}

			advice := Render(p.ChainID, chainName, p.ProposalID, p.Title, sub, a, time.Now())
			if err := f.sink.Deliver(groupCtx, advice, sub); err != nil {
				f.logger.Error("advice fan-out: delivery failed", zap.String("subscriber", sub.SubscriberID), zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("deliver to subscriber %s: %w", sub.SubscriberID, err)
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			rendered = append(rendered, advice)
			mu.Unlock()
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		f.logger.Warn("advice fan-out: worker group reported error", zap.Error(err))
	}

	return rendered, firstErr
}
