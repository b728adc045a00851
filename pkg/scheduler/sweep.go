package scheduler

import (
	"context"
	"time"

	"github.com/govsentinel/sentinel/pkg/analysis"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

// SweepActivities holds the dependencies of the hourly Analysis Cache purge
// (§4.8's "sweep task runs the Cache's purge hourly"), following the same
// one-struct-per-task-queue convention as watcher.Activities.
type SweepActivities struct {
	Store  analysis.Store
	MaxAge time.Duration
	Logger *zap.Logger
}

// PurgeExpired deletes analyses older than MaxAge and returns the row count removed.
func (a *SweepActivities) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := a.Store.PurgeOlderThan(ctx, a.MaxAge)
	if err != nil {
		return 0, err
	}
	a.Logger.Info("analysis sweep: purged expired analyses", zap.Int64("count", n))
	return n, nil
}

// AnalysisSweepWorkflowName is the registered name used both by worker
// registration and by the Scheduler's ScheduleWorkflowAction (§4.8.1).
const AnalysisSweepWorkflowName = "AnalysisSweepWorkflow"

// SweepWorkflowContext wires the AnalysisSweepWorkflow to its Activities.
type SweepWorkflowContext struct {
	Activities *SweepActivities
}

// AnalysisSweepWorkflow runs on the shared analysis-and-delivery task queue,
// scheduled hourly (§4.8).
func (wc *SweepWorkflowContext) AnalysisSweepWorkflow(ctx workflow.Context) (int64, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var purged int64
	if err := workflow.ExecuteActivity(ctx, wc.Activities.PurgeExpired).Get(ctx, &purged); err != nil {
		return 0, err
	}
	return purged, nil
}
