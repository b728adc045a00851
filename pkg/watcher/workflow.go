package watcher

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WatcherTickWorkflowName is the registered name used both by worker
// registration and by the Scheduler's ScheduleWorkflowAction (§4.8.1).
const WatcherTickWorkflowName = "WatcherTickWorkflow"

// WorkflowContext wires a WatcherTickWorkflow to its Activities, following the
// teacher's workflow.Context{ActivityContext} convention.
type WorkflowContext struct {
	Activities *Activities
}

// WatcherTickWorkflow is scheduled once per chain, at a nominal 1-hour
// interval with ±10% jitter (§4.2), and can also be triggered out-of-band via
// the schedule client's TriggerImmediately for Scheduler.ForceTick.
func (wc *WorkflowContext) WatcherTickWorkflow(ctx workflow.Context, in TickInput) (TickOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var out TickOutput
	if err := workflow.ExecuteActivity(ctx, wc.Activities.RunTick, in).Get(ctx, &out); err != nil {
		return TickOutput{}, err
	}
	return out, nil
}
