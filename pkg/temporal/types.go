package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
)

// Default namespace. Unlike the teacher, this process runs a single namespace
// for every chain it watches — there is no per-chain tenant isolation to model.
const DefaultNamespace = "govsentinel"

// Task queues.
const (
	// WatcherQueuePrefix is the per-chain task queue the Watcher's tick workflow
	// and its chain-client activities run on, formatted with the chain ID.
	WatcherQueuePrefix = "watcher:%s"
	// AnalysisDeliveryQueue is the shared queue for the analysis-sweep workflow
	// and any scheduler-administered activities that are not chain-scoped.
	AnalysisDeliveryQueue = "analysis-delivery"
)

// Schedule IDs.
const (
	// WatcherScheduleID is the per-chain Watcher tick schedule, formatted with the chain ID.
	WatcherScheduleID = "watcher:%s"
	// AnalysisSweepScheduleID is the hourly Analysis Cache purge sweep.
	AnalysisSweepScheduleID = "analysis-sweep"
)

// Workflow IDs.
const (
	WatcherTickWorkflowID   = "watcher:%s:tick"
	AnalysisSweepWorkflowID = "analysis-sweep"
)

// WatcherQueue returns the per-chain task queue name for chainID.
func WatcherQueue(chainID string) string {
	return fmt.Sprintf(WatcherQueuePrefix, chainID)
}

// WatcherScheduleIDFor returns the Watcher schedule ID for chainID.
func WatcherScheduleIDFor(chainID string) string {
	return fmt.Sprintf(WatcherScheduleID, chainID)
}

// WatcherTickWorkflowIDFor formats WatcherTickWorkflowID for chainID. The Watcher
// schedules do not set a workflow ID from it, and ForceTick (§6) triggers the
// chain's schedule rather than starting a workflow with its own ID.
func WatcherTickWorkflowIDFor(chainID string) string {
	return fmt.Sprintf(WatcherTickWorkflowID, chainID)
}

// OneHourSpec returns a schedule spec for one hour, with Temporal's per-action
// Jitter set to +/-10% — the Watcher's nominal tick interval (§4.2), avoiding a
// thundering herd across many chains sharing the same nominal interval.
func OneHourSpec() client.ScheduleSpec {
	return client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{{Every: time.Hour}},
		Jitter:    6 * time.Minute,
	}
}

// FiveMinuteSpec returns a schedule spec for five minutes with no jitter. The
// analysis sweep is scheduled with GetScheduleSpec(PurgeInterval), not with this.
func FiveMinuteSpec() client.ScheduleSpec {
	return GetScheduleSpec(5 * time.Minute)
}

// GetScheduleSpec returns an un-jittered schedule spec for the given interval.
func GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}
