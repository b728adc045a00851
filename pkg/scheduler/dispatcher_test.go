package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/govsentinel/sentinel/pkg/advice"
	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	"go.uber.org/zap"
)

type fakePipeline struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePipeline) GetOrCompute(ctx context.Context, p chain.Proposal, chainName string, policy subscriber.Policy) (analysis.Analysis, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return analysis.Analysis{}, f.err
	}
	return analysis.Analysis{Recommendation: analysis.RecommendApprove}, nil
}

func (f *fakePipeline) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMatcher struct {
	subs []subscriber.Subscriber
	err  error
}

func (f *fakeMatcher) ListSubscribersFor(ctx context.Context, chainID string, proposalID uint64, now time.Time) ([]subscriber.Subscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

type fakeFanOut struct {
	mu    sync.Mutex
	runs  int
	subs  []subscriber.Subscriber
	err   error
	ready chan struct{}
}

func (f *fakeFanOut) Run(ctx context.Context, p chain.Proposal, chainName string, subs []subscriber.Subscriber) ([]advice.Advice, error) {
	f.mu.Lock()
	f.runs++
	f.subs = subs
	f.mu.Unlock()
	if f.ready != nil {
		close(f.ready)
	}
	return nil, f.err
}

func (f *fakeFanOut) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AnalysisQueueCapacity = 16
	cfg.DeliveryQueueCapacity = 16
	cfg.CLLM = 2
	cfg.CSend = 2
	cfg.AnalysisDrainGrace = 200 * time.Millisecond
	cfg.DeliveryDrainGrace = 200 * time.Millisecond
	return cfg
}

func testProposal() chain.Proposal {
	return chain.Proposal{ChainID: "cosmoshub-4", ProposalID: 7, Title: "Raise community pool tax", Status: chain.StatusVoting}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func TestDispatcherEnqueueAnalysisDrivesFanOut(t *testing.T) {
	pipeline := &fakePipeline{}
	matcher := &fakeMatcher{subs: []subscriber.Subscriber{{SubscriberID: "sub-1"}}}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return "Cosmos Hub" }, zap.NewNop())

	d.enqueueAnalysis(testProposal())

	waitFor(t, time.Second, func() bool { return fanout.runCount() == 1 })
	if pipeline.callCount() != 1 {
		t.Fatalf("expected exactly one analysis call, got %d", pipeline.callCount())
	}
}

func TestDispatcherDeduplicatesInFlightFingerprint(t *testing.T) {
	pipeline := &fakePipeline{}
	matcher := &fakeMatcher{}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	p := testProposal()
	d.enqueueAnalysis(p)
	d.enqueueAnalysis(p)
	d.enqueueAnalysis(p)

	waitFor(t, time.Second, func() bool { return pipeline.callCount() >= 1 })
	time.Sleep(50 * time.Millisecond)

	if calls := pipeline.callCount(); calls != 1 {
		t.Fatalf("expected duplicate enqueues to collapse into one analysis call, got %d", calls)
	}
}

func TestDispatcherSkipsFanOutWhenNoSubscribers(t *testing.T) {
	pipeline := &fakePipeline{}
	matcher := &fakeMatcher{subs: nil}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	d.enqueueAnalysis(testProposal())

	waitFor(t, time.Second, func() bool { return pipeline.callCount() == 1 })
	time.Sleep(50 * time.Millisecond)

	if fanout.runCount() != 0 {
		t.Fatalf("expected no fan-out run with zero subscribers, got %d", fanout.runCount())
	}
}

func TestDispatcherAnalysisFailureSkipsDelivery(t *testing.T) {
	pipeline := &fakePipeline{err: errors.New("provider exhausted")}
	matcher := &fakeMatcher{subs: []subscriber.Subscriber{{SubscriberID: "sub-1"}}}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	d.enqueueAnalysis(testProposal())

	waitFor(t, time.Second, func() bool { return pipeline.callCount() == 1 })
	time.Sleep(50 * time.Millisecond)

	if fanout.runCount() != 0 {
		t.Fatalf("expected fan-out to be skipped after analysis failure, got %d runs", fanout.runCount())
	}
}

func TestDispatcherDedupSizeReflectsInFlightWork(t *testing.T) {
	ready := make(chan struct{})
	block := make(chan struct{})
	pipeline := &blockingPipeline{ready: ready, block: block}
	matcher := &fakeMatcher{}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	d.enqueueAnalysis(testProposal())
	<-ready

	if size := d.dedupSize(); size != 1 {
		t.Fatalf("expected dedup set to hold the in-flight fingerprint, got %d", size)
	}

	close(block)
	waitFor(t, time.Second, func() bool { return d.dedupSize() == 0 })
}

type blockingPipeline struct {
	ready chan struct{}
	block chan struct{}
	once  sync.Once
}

func (b *blockingPipeline) GetOrCompute(ctx context.Context, p chain.Proposal, chainName string, policy subscriber.Policy) (analysis.Analysis, error) {
	b.once.Do(func() { close(b.ready) })
	<-b.block
	return analysis.Analysis{}, nil
}

func TestDispatcherStopDrainsBeforeReturning(t *testing.T) {
	pipeline := &fakePipeline{}
	matcher := &fakeMatcher{subs: []subscriber.Subscriber{{SubscriberID: "sub-1"}}}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	d.enqueueAnalysis(testProposal())
	waitFor(t, time.Second, func() bool { return fanout.runCount() == 1 })

	d.stop(time.Second, time.Second)

	if !d.stopped.get() {
		t.Fatalf("expected dispatcher to be marked stopped")
	}
}

func TestDispatcherStopAbandonsWorkPastGrace(t *testing.T) {
	block := make(chan struct{})
	pipeline := &blockingPipeline{ready: make(chan struct{}), block: block}
	matcher := &fakeMatcher{}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	d.enqueueAnalysis(testProposal())
	<-pipeline.ready

	start := time.Now()
	d.stop(50*time.Millisecond, 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected Stop to return promptly after its grace period elapsed, took %s", elapsed)
	}
	close(block)
}

func TestDispatcherRejectsNewWorkAfterStop(t *testing.T) {
	pipeline := &fakePipeline{}
	matcher := &fakeMatcher{}
	fanout := &fakeFanOut{}
	d := newDispatcher(testConfig(), pipeline, matcher, fanout, func(id string) string { return id }, zap.NewNop())

	d.stop(time.Second, time.Second)
	d.enqueueAnalysis(testProposal())

	time.Sleep(50 * time.Millisecond)
	if pipeline.callCount() != 0 {
		t.Fatalf("expected no analysis calls after stop, got %d", pipeline.callCount())
	}
}
