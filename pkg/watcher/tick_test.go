package watcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/govsentinel/sentinel/pkg/chain"
	"go.uber.org/zap"
)

type fakeChainClient struct {
	active     []chain.ProposalSummary
	proposals  map[uint64]chain.Proposal
	fetchErr   map[uint64]error
	listErr    error
	fetchCalls int
}

func (f *fakeChainClient) ListActive(ctx context.Context) ([]chain.ProposalSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.active, nil
}

func (f *fakeChainClient) Fetch(ctx context.Context, proposalID uint64) (chain.Proposal, error) {
	f.fetchCalls++
	if err, ok := f.fetchErr[proposalID]; ok {
		return chain.Proposal{}, err
	}
	p, ok := f.proposals[proposalID]
	if !ok {
		return chain.Proposal{}, fmt.Errorf("no such proposal %d", proposalID)
	}
	return p, nil
}

func TestTickEmitsNewForFreshProposal(t *testing.T) {
	client := &fakeChainClient{
		active: []chain.ProposalSummary{{ProposalID: 848, Status: chain.StatusVoting}},
		proposals: map[uint64]chain.Proposal{
			848: {ChainID: "osmosis-1", ProposalID: 848, Title: "Increase taker fees", Status: chain.StatusVoting},
		},
	}
	events, cursor, err := Tick(context.Background(), client, NewCursor("osmosis-1"), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventNew {
		t.Fatalf("expected exactly one NEW event, got %+v", events)
	}
	if cursor.HighestSeen != 848 {
		t.Fatalf("expected highestSeen=848, got %d", cursor.HighestSeen)
	}
	if _, tracked := cursor.Tracked[848]; !tracked {
		t.Fatalf("expected 848 to remain tracked (non-terminal)")
	}
}

func TestTickEmitsSyntheticChangedForNeverSeenTerminalProposal(t *testing.T) {
	// ListActive observed the proposal as non-terminal, but by the time Fetch
	// runs it has already resolved to a terminal status — a proposal that is
	// both never-before-seen and terminal within the same tick (§4.2).
	client := &fakeChainClient{
		active: []chain.ProposalSummary{{ProposalID: 848, Status: chain.StatusVoting}},
		proposals: map[uint64]chain.Proposal{
			848: {ChainID: "osmosis-1", ProposalID: 848, Title: "Increase taker fees", Status: chain.StatusPassed},
		},
	}
	events, cursor, err := Tick(context.Background(), client, NewCursor("osmosis-1"), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Kind != EventNew || events[1].Kind != EventChanged {
		t.Fatalf("expected NEW followed by synthetic CHANGED, got %+v", events)
	}
	if events[1].OldStatus != chain.StatusPassed {
		t.Fatalf("expected synthetic CHANGED to carry the terminal status, got %v", events[1].OldStatus)
	}
	if _, tracked := cursor.Tracked[848]; tracked {
		t.Fatalf("expected terminal proposal to not remain tracked")
	}
}

func TestTickRetickNoChangeEmitsNothing(t *testing.T) {
	client := &fakeChainClient{
		active: []chain.ProposalSummary{{ProposalID: 848, Status: chain.StatusVoting}},
		proposals: map[uint64]chain.Proposal{
			848: {ChainID: "osmosis-1", ProposalID: 848, Title: "Increase taker fees", Status: chain.StatusVoting},
		},
	}
	_, cursor1, err := Tick(context.Background(), client, NewCursor("osmosis-1"), zap.NewNop())
	if err != nil {
		t.Fatalf("first tick failed: %v", err)
	}

	events2, cursor2, err := Tick(context.Background(), client, cursor1, zap.NewNop())
	if err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if len(events2) != 0 {
		t.Fatalf("expected zero events on unchanged re-tick, got %+v", events2)
	}
	if cursor2.HighestSeen != cursor1.HighestSeen {
		t.Fatalf("cursor highestSeen should be unchanged: %d vs %d", cursor2.HighestSeen, cursor1.HighestSeen)
	}
}

func TestTickEmitsChangedOnStatusTransition(t *testing.T) {
	cursor := NewCursor("osmosis-1")
	cursor.HighestSeen = 848
	cursor.Tracked[848] = TrackedProposal{Status: chain.StatusVoting, Title: "Increase taker fees"}

	client := &fakeChainClient{
		active: nil, // dropped off the active list because it's now terminal
		proposals: map[uint64]chain.Proposal{
			848: {ChainID: "osmosis-1", ProposalID: 848, Title: "Increase taker fees", Status: chain.StatusPassed},
		},
	}
	events, newCursor, err := Tick(context.Background(), client, cursor, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventChanged {
		t.Fatalf("expected exactly one CHANGED event, got %+v", events)
	}
	if _, stillTracked := newCursor.Tracked[848]; stillTracked {
		t.Fatalf("expected 848 to leave the tracked set once terminal")
	}
}

func TestTickIgnoresTerminalRegression(t *testing.T) {
	cursor := NewCursor("osmosis-1")
	cursor.HighestSeen = 1
	// 1 already terminal but somehow left in tracked map (shouldn't normally happen, but
	// exercises the defensive regression check).
	cursor.Tracked[1] = TrackedProposal{Status: chain.StatusPassed, Title: "X"}

	client := &fakeChainClient{
		proposals: map[uint64]chain.Proposal{
			1: {ChainID: "osmosis-1", ProposalID: 1, Title: "X", Status: chain.StatusVoting},
		},
	}
	events, newCursor, err := Tick(context.Background(), client, cursor, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected the regression to be ignored, got %+v", events)
	}
	if newCursor.Tracked[1].Status != chain.StatusPassed {
		t.Fatalf("expected prior terminal status retained, got %v", newCursor.Tracked[1])
	}
}

func TestTickEmitsChangedOnTitleEditWithNoStatusChange(t *testing.T) {
	cursor := NewCursor("osmosis-1")
	cursor.HighestSeen = 848
	cursor.Tracked[848] = TrackedProposal{Status: chain.StatusVoting, Title: "Increase taker fees"}

	client := &fakeChainClient{
		active: []chain.ProposalSummary{{ProposalID: 848, Status: chain.StatusVoting}},
		proposals: map[uint64]chain.Proposal{
			848: {ChainID: "osmosis-1", ProposalID: 848, Title: "Increase taker fees to 0.3%", Status: chain.StatusVoting},
		},
	}
	events, newCursor, err := Tick(context.Background(), client, cursor, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventChanged {
		t.Fatalf("expected exactly one CHANGED event for the title edit, got %+v", events)
	}
	if newCursor.Tracked[848].Title != "Increase taker fees to 0.3%" {
		t.Fatalf("expected the cursor to persist the new title, got %q", newCursor.Tracked[848].Title)
	}
}

func TestTickEmitsChangedOnVotingEndExtension(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	extended := start.Add(48 * time.Hour)

	cursor := NewCursor("osmosis-1")
	cursor.HighestSeen = 848
	cursor.Tracked[848] = TrackedProposal{Status: chain.StatusVoting, Title: "Increase taker fees", VotingEnd: &start}

	client := &fakeChainClient{
		active: []chain.ProposalSummary{{ProposalID: 848, Status: chain.StatusVoting}},
		proposals: map[uint64]chain.Proposal{
			848: {ChainID: "osmosis-1", ProposalID: 848, Title: "Increase taker fees", Status: chain.StatusVoting, VotingEnd: &extended},
		},
	}
	events, _, err := Tick(context.Background(), client, cursor, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventChanged {
		t.Fatalf("expected exactly one CHANGED event for the votingEnd extension, got %+v", events)
	}
}

func TestTickFailsEntirelyLeavesCursorUnchanged(t *testing.T) {
	cursor := NewCursor("osmosis-1")
	cursor.HighestSeen = 5
	client := &fakeChainClient{listErr: fmt.Errorf("boom")}

	_, gotCursor, err := Tick(context.Background(), client, cursor, zap.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
	if gotCursor.HighestSeen != 5 {
		t.Fatalf("expected cursor unchanged on total tick failure, got %+v", gotCursor)
	}
}

func TestTickPartialFetchFailureKeepsPriorTrackedStatus(t *testing.T) {
	cursor := NewCursor("osmosis-1")
	cursor.HighestSeen = 10
	cursor.Tracked[10] = TrackedProposal{Status: chain.StatusVoting, Title: "X"}

	client := &fakeChainClient{
		active:   []chain.ProposalSummary{{ProposalID: 10, Status: chain.StatusVoting}},
		fetchErr: map[uint64]error{10: fmt.Errorf("rpc timeout")},
	}
	events, newCursor, err := Tick(context.Background(), client, cursor, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected total failure: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events when fetch fails, got %+v", events)
	}
	if newCursor.Tracked[10].Status != chain.StatusVoting {
		t.Fatalf("expected prior tracked status retained across fetch failure")
	}
}
