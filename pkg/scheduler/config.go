package scheduler

import "time"

// Config bounds the Scheduler's queues and drain behavior (§4.8).
type Config struct {
	// AnalysisQueueCapacity is A: the backlog depth of the analysis work queue.
	AnalysisQueueCapacity int
	// DeliveryQueueCapacity is D: the backlog depth of the fan-out/delivery work queue.
	DeliveryQueueCapacity int
	// CLLM caps concurrent Hybrid Analyzer calls.
	CLLM int
	// CSend caps concurrent Notifier.Send calls.
	CSend int
	// AnalysisDrainGrace bounds how long Stop waits for in-flight analysis work.
	AnalysisDrainGrace time.Duration
	// DeliveryDrainGrace bounds how long Stop waits for in-flight delivery work.
	DeliveryDrainGrace time.Duration
	// PurgeInterval is how often the Analysis Cache sweep runs.
	PurgeInterval time.Duration
	// PurgeAge is the age past which an Analysis is purged regardless of status.
	PurgeAge time.Duration
}

// DefaultConfig returns the spec's default bounds (§4.8).
func DefaultConfig() Config {
	return Config{
		AnalysisQueueCapacity: 256,
		DeliveryQueueCapacity: 1024,
		CLLM:                  3,
		CSend:                 8,
		AnalysisDrainGrace:    60 * time.Second,
		DeliveryDrainGrace:    30 * time.Second,
		PurgeInterval:         time.Hour,
		PurgeAge:              30 * 24 * time.Hour,
	}
}
