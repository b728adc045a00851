// Package scheduler owns the lifecycle of the Watcher's per-chain schedules,
// the analysis and delivery work queues, and the hourly Analysis Cache sweep
// (§4.8). It is the one place in the process that knows about every chain.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/govsentinel/sentinel/pkg/advice"
	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/analyzer"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/delivery"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	sentinaltemporal "github.com/govsentinel/sentinel/pkg/temporal"
	"github.com/govsentinel/sentinel/pkg/watcher"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler is the process's central orchestrator: it owns a Temporal
// worker.Worker per chain task queue (Watcher tick workflows) plus one worker
// on the shared analysis-and-delivery queue (the sweep workflow), delegating
// the in-process analysis/delivery work queues to a dispatcher (§4.8.1).
type Scheduler struct {
	cfg    Config
	logger *zap.Logger

	temporal *sentinaltemporal.Client
	chains   []chain.ChainDescriptor

	cursors      watcher.Store
	chainFactory chain.Factory
	gate         *delivery.Gate
	analyses     analysis.Store

	dispatch *dispatcher

	watcherWorkers map[string]worker.Worker
	sharedWorker   worker.Worker
}

// atomicFlag is a small mutex-guarded bool, matching delivery.atomicBool's
// preference for a named type over a bare atomic.Bool field.
type atomicFlag struct {
	mu    sync.Mutex
	value bool
}

func (f *atomicFlag) set(v bool) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

func (f *atomicFlag) get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Deps bundles the components New wires together, mirroring the teacher's
// activity.Context grouping of everything one App needs.
type Deps struct {
	Temporal     *sentinaltemporal.Client
	Chains       []chain.ChainDescriptor
	ChainFactory chain.Factory
	Cursors      watcher.Store
	Matcher      *subscriber.Matcher
	Pipeline     *analyzer.Pipeline
	Hybrid       *analyzer.Analyzer
	FanOut       *advice.FanOut
	Gate         *delivery.Gate
	Analyses     analysis.Store
	Logger       *zap.Logger
}

// New builds a Scheduler, applying cfg's concurrency bounds to the Hybrid
// Analyzer and Delivery Gate it was handed (§4.8.1).
func New(cfg Config, deps Deps) *Scheduler {
	deps.Hybrid.SetConcurrency(cfg.CLLM)
	deps.Gate.SetSendConcurrency(cfg.CSend)

	s := &Scheduler{
		cfg:            cfg,
		logger:         deps.Logger,
		temporal:       deps.Temporal,
		chains:         deps.Chains,
		cursors:        deps.Cursors,
		chainFactory:   deps.ChainFactory,
		gate:           deps.Gate,
		analyses:       deps.Analyses,
		watcherWorkers: make(map[string]worker.Worker),
	}
	s.dispatch = newDispatcher(cfg, deps.Pipeline, deps.Matcher, deps.FanOut, s.chainName, deps.Logger)
	return s
}

// eventSink adapts the Scheduler to watcher.EventSink.
type eventSink struct{ d *dispatcher }

func (e *eventSink) Publish(ctx context.Context, chainID string, events []watcher.Event) error {
	for _, ev := range events {
		e.d.enqueueAnalysis(ev.Proposal)
	}
	return nil
}

// chainName looks up the human-readable name for chainID, falling back to the
// chainID itself so a misconfigured chain list never blocks the pipeline.
func (s *Scheduler) chainName(chainID string) string {
	for _, c := range s.chains {
		if c.ChainID == chainID {
			return c.Name
		}
	}
	return chainID
}

// Build registers the Watcher workflow/activity for every configured chain on
// its own task queue, plus the shared queue's sweep workflow, following the
// teacher's App.Initialize convention of building every worker before Start.
func (s *Scheduler) Build() {
	for _, c := range s.chains {
		activities := &watcher.Activities{
			Factory: s.chainFactory,
			Cursors: s.cursors,
			Sink:    &eventSink{d: s.dispatch},
			Logger:  s.logger,
		}
		wfCtx := &watcher.WorkflowContext{Activities: activities}

		wkr := worker.New(s.temporal.TClient, sentinaltemporal.WatcherQueue(c.ChainID), worker.Options{
			MaxConcurrentWorkflowTaskPollers: 5,
			MaxConcurrentActivityTaskPollers: 5,
			WorkerStopTimeout:                1 * time.Minute,
		})
		wkr.RegisterWorkflowWithOptions(wfCtx.WatcherTickWorkflow, temporalworkflow.RegisterOptions{Name: watcher.WatcherTickWorkflowName})
		wkr.RegisterActivity(activities.RunTick)

		s.watcherWorkers[c.ChainID] = wkr
	}

	sweepActivities := &SweepActivities{Store: s.analyses, MaxAge: s.cfg.PurgeAge, Logger: s.logger}
	sweepCtx := &SweepWorkflowContext{Activities: sweepActivities}

	s.sharedWorker = worker.New(s.temporal.TClient, s.temporal.AnalysisDeliveryQueue, worker.Options{
		MaxConcurrentWorkflowTaskPollers: 5,
		MaxConcurrentActivityTaskPollers: 5,
		WorkerStopTimeout:                1 * time.Minute,
	})
	s.sharedWorker.RegisterWorkflowWithOptions(sweepCtx.AnalysisSweepWorkflow, temporalworkflow.RegisterOptions{Name: AnalysisSweepWorkflowName})
	s.sharedWorker.RegisterActivity(sweepActivities.PurgeExpired)
}

// Start starts every worker concurrently, ensures the per-chain and sweep
// schedules exist, and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)

	for chainID, wkr := range s.watcherWorkers {
		wkr := wkr
		chainID := chainID
		g.Go(func() error {
			if err := wkr.Start(); err != nil {
				return fmt.Errorf("start watcher worker for %s: %w", chainID, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := s.sharedWorker.Start(); err != nil {
			return fmt.Errorf("start shared worker: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.ensureSchedules(ctx); err != nil {
		return fmt.Errorf("ensure schedules: %w", err)
	}

	<-ctx.Done()
	s.Stop()
	return nil
}

// ensureSchedules creates the per-chain Watcher schedule and the shared
// Analysis Sweep schedule if they do not already exist, grounded on the
// teacher's EnsureHeadScanSchedule Describe-then-Create-on-NotFound pattern.
func (s *Scheduler) ensureSchedules(ctx context.Context) error {
	for _, c := range s.chains {
		id := sentinaltemporal.WatcherScheduleIDFor(c.ChainID)
		if err := s.ensureSchedule(ctx, id, sentinaltemporal.OneHourSpec(), client.ScheduleWorkflowAction{
			Workflow: watcher.WatcherTickWorkflowName,
			Args: []interface{}{watcher.TickInput{
				ChainID:   c.ChainID,
				ChainName: c.Name,
				Endpoints: c.Endpoints,
			}},
			TaskQueue:                sentinaltemporal.WatcherQueue(c.ChainID),
			WorkflowExecutionTimeout: 5 * time.Minute,
		}); err != nil {
			return fmt.Errorf("ensure watcher schedule for %s: %w", c.ChainID, err)
		}
	}

	return s.ensureSchedule(ctx, sentinaltemporal.AnalysisSweepScheduleID, sentinaltemporal.GetScheduleSpec(s.cfg.PurgeInterval), client.ScheduleWorkflowAction{
		Workflow:                 AnalysisSweepWorkflowName,
		TaskQueue:                s.temporal.AnalysisDeliveryQueue,
		WorkflowExecutionTimeout: 2 * time.Minute,
	})
}

func (s *Scheduler) ensureSchedule(ctx context.Context, id string, spec client.ScheduleSpec, action client.ScheduleWorkflowAction) error {
	handle := s.temporal.TSClient.GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return err
	}

	_, err := s.temporal.TSClient.Create(ctx, client.ScheduleOptions{
		ID:     id,
		Spec:   spec,
		Action: &action,
	})
	if err != nil && !isAlreadyExists(err) {
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *serviceerror.NotFound
	return errors.As(err, &notFound)
}

func isAlreadyExists(err error) bool {
	var exists *serviceerror.AlreadyExists
	return errors.As(err, &exists)
}

// ForceTick triggers an out-of-band Watcher tick for chainID immediately,
// bypassing the hourly schedule (§6's administrative surface). A tick that
// overlaps the schedule's own firing is harmless: cursor saves are
// last-writer-wins upserts, and the duplicate events it emits are absorbed by
// the analysis dedup set, the Analysis Cache and the Delivery Gate's marks.
func (s *Scheduler) ForceTick(ctx context.Context, chainID string) error {
	id := sentinaltemporal.WatcherScheduleIDFor(chainID)
	handle := s.temporal.TSClient.GetHandle(ctx, id)
	return handle.Trigger(ctx, client.ScheduleTriggerOptions{})
}

// PauseDelivery toggles the Delivery Gate's short-circuit (§6).
func (s *Scheduler) PauseDelivery(paused bool) {
	s.gate.SetPaused(paused)
}

// Stats is the administrative snapshot returned by the Stats() endpoint (§6).
type Stats struct {
	Chains         int  `json:"chains"`
	WatcherWorkers int  `json:"watcher_workers"`
	DedupSetSize   int  `json:"dedup_set_size"`
	DeliveryPaused bool `json:"delivery_paused"`
}

// Stats reports a point-in-time snapshot of scheduler load.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Chains:         len(s.chains),
		WatcherWorkers: len(s.watcherWorkers),
		DedupSetSize:   s.dispatch.dedupSize(),
		DeliveryPaused: s.gate.Paused(),
	}
}

// Stop stops accepting new Watcher ticks, drains the analysis queue up to its
// grace period, then the delivery queue up to its own, then abandons whatever
// remains (§4.8: "cancels remaining work"). Partial deliveries in flight are
// safe by construction — the Delivery Gate never marks a send durable until
// after it succeeds, so a dropped in-flight delivery simply gets redelivered
// on the next fan-out.
func (s *Scheduler) Stop() {
	for chainID, wkr := range s.watcherWorkers {
		s.logger.Info("scheduler: stopping watcher worker", zap.String("chain", chainID))
		wkr.Stop()
	}
	s.sharedWorker.Stop()

	s.dispatch.stop(s.cfg.AnalysisDrainGrace, s.cfg.DeliveryDrainGrace)

	s.logger.Info("さようなら!")
}
