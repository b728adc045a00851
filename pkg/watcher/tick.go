package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/govsentinel/sentinel/pkg/chain"
	"go.uber.org/zap"
)

// Tick runs one poll of a chain (§4.2) against the given cursor: calls
// ListActive plus Fetch for every previously-tracked non-terminal proposal (to
// catch status changes on proposals that dropped off the active list), diffs
// against the cursor's remembered snapshots, and returns the events plus the
// cursor to persist.
//
// A tick that fails entirely (ListActive errors) returns the error and the
// input cursor unchanged, per "a tick that fails entirely leaves the cursor
// unchanged and is retried on the next interval". A tick that partially
// succeeds (some Fetch calls fail) still returns the events and cursor
// derived from what did succeed; proposals whose Fetch failed keep their
// prior tracked status unchanged.
func Tick(ctx context.Context, client chain.Client, cursor Cursor, logger *zap.Logger) ([]Event, Cursor, error) {
	active, err := client.ListActive(ctx)
	if err != nil {
		return nil, cursor, fmt.Errorf("list active proposals for %s: %w", cursor.ChainID, err)
	}

	toCheck := make(map[uint64]struct{}, len(cursor.Tracked)+len(active))
	for id := range cursor.Tracked {
		toCheck[id] = struct{}{}
	}
	for _, p := range active {
		toCheck[p.ProposalID] = struct{}{}
	}

	var events []Event
	newTracked := make(map[uint64]TrackedProposal)
	highestSeen := cursor.HighestSeen

	for id := range toCheck {
		p, err := client.Fetch(ctx, id)
		if err != nil {
			logger.Warn("watcher: fetch failed, leaving proposal in prior tracked state",
				zap.String("chain", cursor.ChainID), zap.Uint64("proposal", id), zap.Error(err))
			if prev, wasTracked := cursor.Tracked[id]; wasTracked {
				newTracked[id] = prev
			}
			continue
		}

		prev, wasTracked := cursor.Tracked[id]
		isNewProposal := !wasTracked && id > cursor.HighestSeen

		switch {
		case isNewProposal:
			events = append(events, Event{Kind: EventNew, Proposal: p})
			if p.Status.IsTerminal() {
				// A never-before-seen proposal observed only with a terminal
				// status gets a synthetic CHANGED right behind its NEW so
				// downstream stages can reason uniformly about transitions
				// into a terminal status (§4.2).
				events = append(events, Event{Kind: EventChanged, Proposal: p, OldStatus: p.Status})
			}
		case wasTracked && snapshotChanged(prev, p):
			if prev.Status.IsTerminal() && !p.Status.IsTerminal() {
				// A provider re-reporting a terminal proposal as non-terminal is
				// treated as a transient read error and ignored (§4.2).
				logger.Warn("watcher: provider reported terminal proposal as non-terminal, ignoring",
					zap.String("chain", cursor.ChainID), zap.Uint64("proposal", id),
					zap.String("prior_status", string(prev.Status)), zap.String("reported_status", string(p.Status)))
				newTracked[id] = prev
				continue
			}
			events = append(events, Event{Kind: EventChanged, Proposal: p, OldStatus: prev.Status})
		}

		if id > highestSeen {
			highestSeen = id
		}
		if !p.Status.IsTerminal() {
			newTracked[id] = TrackedProposal{
				Status:      p.Status,
				Title:       p.Title,
				Description: p.Description,
				VotingEnd:   p.VotingEnd,
			}
		}
	}

	newCursor := Cursor{ChainID: cursor.ChainID, HighestSeen: highestSeen, Tracked: newTracked}
	return events, newCursor, nil
}

// snapshotChanged reports whether any of (status, title, description,
// votingEnd) differs from the cursor's last-observed snapshot, per §4.2
// step 3's CHANGED trigger.
func snapshotChanged(prev TrackedProposal, p chain.Proposal) bool {
	return prev.Status != p.Status ||
		prev.Title != p.Title ||
		prev.Description != p.Description ||
		votingEndDiffers(prev.VotingEnd, p.VotingEnd)
}

func votingEndDiffers(a, b *time.Time) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return !a.Equal(*b)
}
