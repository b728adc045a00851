package watcher

import (
	"context"
	"fmt"

	"github.com/govsentinel/sentinel/pkg/chain"
	"go.uber.org/zap"

	sdktemporal "go.temporal.io/sdk/temporal"
)

// Activities holds the dependencies a WatcherTickWorkflow's activities close
// over, following the teacher's activity.Context convention (one struct per
// task queue's workflows, methods registered as activities).
type Activities struct {
	Factory chain.Factory
	Cursors Store
	Sink    EventSink
	Logger  *zap.Logger
}

// EventSink is where a tick publishes NEW/CHANGED events for downstream
// consumption by the Analysis Cache / Hybrid Analyzer pipeline (§4.2→§4.3).
type EventSink interface {
	Publish(ctx context.Context, chainID string, events []Event) error
}

// TickInput identifies which chain and via which endpoints to poll.
type TickInput struct {
	ChainID   string
	ChainName string
	Endpoints []string
}

// TickOutput summarizes one tick for workflow history / Stats().
type TickOutput struct {
	EventsEmitted int
	HighestSeen   uint64
}

// RunTick is the activity a WatcherTickWorkflow executes each schedule firing.
// It loads the cursor, runs Tick, publishes events, and persists the cursor —
// in that order, so a crash between publish and persist merely causes a
// redundant event on the next run rather than a lost one (favoring
// at-least-once event emission over lost updates).
func (a *Activities) RunTick(ctx context.Context, in TickInput) (TickOutput, error) {
	cursor, err := a.Cursors.Load(ctx, in.ChainID)
	if err != nil {
		var corrupt *ErrCorrupt
		if isCorrupt(err, &corrupt) {
			a.Logger.Error("watcher: cursor corrupted, halting chain",
				zap.String("chain", in.ChainID), zap.Error(err))
			return TickOutput{}, sdktemporal.NewNonRetryableApplicationError("cursor corrupted", "CursorCorrupt", err)
		}
		return TickOutput{}, fmt.Errorf("load cursor: %w", err)
	}

	client := a.Factory.NewClient(in.ChainID, in.Endpoints)

	events, newCursor, err := Tick(ctx, client, cursor, a.Logger)
	if err != nil {
		return TickOutput{}, fmt.Errorf("tick %s: %w", in.ChainID, err)
	}

	if len(events) > 0 {
		if err := a.Sink.Publish(ctx, in.ChainID, events); err != nil {
			return TickOutput{}, fmt.Errorf("publish events for %s: %w", in.ChainID, err)
		}
	}

	if err := a.Cursors.Save(ctx, newCursor); err != nil {
		return TickOutput{}, fmt.Errorf("save cursor for %s: %w", in.ChainID, err)
	}

	return TickOutput{EventsEmitted: len(events), HighestSeen: newCursor.HighestSeen}, nil
}

func isCorrupt(err error, target **ErrCorrupt) bool {
	c, ok := err.(*ErrCorrupt)
	if ok {
		*target = c
	}
	return ok
}
