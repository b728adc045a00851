package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/govsentinel/sentinel/pkg/advice"
	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// pipelineSource is the subset of analyzer.Pipeline the dispatcher depends on.
type pipelineSource interface {
	GetOrCompute(ctx context.Context, p chain.Proposal, chainName string, policy subscriber.Policy) (analysis.Analysis, error)
}

// subscriberMatcher is the subset of subscriber.Matcher the dispatcher depends on.
type subscriberMatcher interface {
	ListSubscribersFor(ctx context.Context, chainID string, proposalID uint64, now time.Time) ([]subscriber.Subscriber, error)
}

// fanOutRunner is the subset of advice.FanOut the dispatcher depends on.
type fanOutRunner interface {
	Run(ctx context.Context, p chain.Proposal, chainName string, subs []subscriber.Subscriber) ([]advice.Advice, error)
}

// dispatcher owns the two in-process work queues (§4.8) independent of any
// Temporal wiring, so it can be exercised directly in tests.
type dispatcher struct {
	pipeline pipelineSource
	matcher  subscriberMatcher
	fanout   fanOutRunner
	logger   *zap.Logger

	names func(chainID string) string

	analysisPool pond.Pool
	deliveryPool pond.Pool
	dedup        *xsync.Map[analysis.Fingerprint, struct{}]
	analysisWG   sync.WaitGroup
	deliveryWG   sync.WaitGroup
	stopped      atomicFlag
}

func newDispatcher(cfg Config, pipeline pipelineSource, matcher subscriberMatcher, fanout fanOutRunner, names func(string) string, logger *zap.Logger) *dispatcher {
	return &dispatcher{
		pipeline:     pipeline,
		matcher:      matcher,
		fanout:       fanout,
		logger:       logger,
		names:        names,
		analysisPool: pond.NewPool(cfg.CLLM, pond.WithQueueSize(cfg.AnalysisQueueCapacity)),
		deliveryPool: pond.NewPool(cfg.CSend, pond.WithQueueSize(cfg.DeliveryQueueCapacity)),
		dedup:        xsync.NewMap[analysis.Fingerprint, struct{}](),
	}
}

// enqueueAnalysis submits a NEW/CHANGED proposal for analysis, deduplicating
// on fingerprint so a redundant tick's re-emission is a no-op (§4.8).
func (d *dispatcher) enqueueAnalysis(p chain.Proposal) {
	if d.stopped.get() {
		return
	}

	fp := analysis.ComputeFingerprint(p.ChainID, p.ProposalID, p.Title, p.Status)
	if _, loaded := d.dedup.LoadOrStore(fp, struct{}{}); loaded {
		return
	}

	d.analysisWG.Add(1)
	d.analysisPool.Submit(func() {
		defer d.analysisWG.Done()
		defer d.dedup.Delete(fp)
		d.runAnalysis(p, fp)
	})
}

// runAnalysis warms the Analysis Cache for p's fingerprint with a neutral
// policy (§4.6 step 2: the cache key is the proposal, not the subscriber), then
// pushes the proposal into the fan-out queue on success.
func (d *dispatcher) runAnalysis(p chain.Proposal, fp analysis.Fingerprint) {
	ctx := context.Background()
	chainName := d.names(p.ChainID)

	if _, err := d.pipeline.GetOrCompute(ctx, p, chainName, subscriber.Policy{}); err != nil {
		d.logger.Error("scheduler: analysis failed", zap.String("fingerprint", string(fp)), zap.Error(err))
		return
	}

	d.enqueueDelivery(p, chainName)
}

// enqueueDelivery pushes a proposal into the fan-out queue: it matches
// subscribers and drives the Advice Fan-out (§4.6), which resolves each
// subscriber's advice from the now-warm cache entry.
func (d *dispatcher) enqueueDelivery(p chain.Proposal, chainName string) {
	if d.stopped.get() {
		return
	}

	d.deliveryWG.Add(1)
	d.deliveryPool.Submit(func() {
		defer d.deliveryWG.Done()

		ctx := context.Background()
		subs, err := d.matcher.ListSubscribersFor(ctx, p.ChainID, p.ProposalID, time.Now())
		if err != nil {
			d.logger.Error("scheduler: subscriber match failed",
				zap.String("chain", p.ChainID), zap.Uint64("proposal", p.ProposalID), zap.Error(err))
			return
		}
		if len(subs) == 0 {
			return
		}

		if _, err := d.fanout.Run(ctx, p, chainName, subs); err != nil {
			d.logger.Error("scheduler: fan-out reported failures",
				zap.String("chain", p.ChainID), zap.Uint64("proposal", p.ProposalID), zap.Error(err))
		}
	})
}

// dedupSize reports how many fingerprints are currently in flight, for Stats().
func (d *dispatcher) dedupSize() int {
	size := 0
	d.dedup.Range(func(_ analysis.Fingerprint, _ struct{}) bool {
		size++
		return true
	})
	return size
}

// stop marks the dispatcher closed to new work and drains both queues with
// their respective grace periods (§4.8).
func (d *dispatcher) stop(analysisGrace, deliveryGrace time.Duration) {
	d.stopped.set(true)
	drain(&d.analysisWG, analysisGrace, d.logger, "analysis")
	drain(&d.deliveryWG, deliveryGrace, d.logger, "delivery")
}

func drain(wg *sync.WaitGroup, grace time.Duration, logger *zap.Logger, queue string) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("scheduler: drain grace period elapsed, abandoning remaining work", zap.String("queue", queue))
	}
}
