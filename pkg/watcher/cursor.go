// Package watcher implements the multi-chain proposal watcher (§4.2): a
// periodic per-chain poll that diffs observed proposals against a persisted
// cursor and emits NEW/CHANGED events.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/postgres"
)

// TrackedProposal is the last-observed snapshot of a non-terminal proposal
// that the cursor remembers, holding every field §4.2 step 3 requires the
// tick to diff against on the next poll: status, title, description, and
// votingEnd.
type TrackedProposal struct {
	Status      chain.ProposalStatus `json:"status"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	VotingEnd   *time.Time           `json:"voting_end,omitempty"`
}

// Cursor is the per-chain watermark (§3): the highest proposalID observed and
// the set of currently non-terminal proposalIDs still being re-polled, along
// with each tracked proposal's last-observed snapshot so a re-tick can tell a
// genuine change (status, title, description, or votingEnd) from an
// unchanged proposal (§4.2 step 3, §8 scenario S2).
type Cursor struct {
	ChainID     string
	HighestSeen uint64
	Tracked     map[uint64]TrackedProposal
	UpdatedAt   time.Time
}

// NewCursor returns the zero-value cursor for a chain with no prior history.
func NewCursor(chainID string) Cursor {
	return Cursor{ChainID: chainID, Tracked: map[uint64]TrackedProposal{}}
}

// Store persists Cursors (§3.1's cursors table).
type Store interface {
	Load(ctx context.Context, chainID string) (Cursor, error)
	Save(ctx context.Context, c Cursor) error
}

type postgresStore struct {
	db *postgres.Client
}

// NewPostgresStore builds a Store backed by the cursors table.
func NewPostgresStore(db *postgres.Client) Store {
	return &postgresStore{db: db}
}

// InitSchema creates the cursors table if it does not already exist.
func InitSchema(ctx context.Context, db *postgres.Client) error {
	err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cursors (
			chain_id     TEXT PRIMARY KEY,
			highest_seen BIGINT NOT NULL DEFAULT 0,
			tracked      JSONB NOT NULL DEFAULT '{}',
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create cursors table: %w", err)
	}
	return nil
}

// ErrCorrupt marks a cursor row that failed to unmarshal or violated the
// monotonicity invariant on load (§7.1's "Cursor corruption" failure mode).
// RunTick treats this as fatal for that chain: it fails the tick with a
// non-retryable error while other chains keep running.
type ErrCorrupt struct {
	ChainID string
	Reason  string
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("cursor for chain %s is corrupt: %s", e.ChainID, e.Reason)
}

// Load returns NewCursor(chainID) when no row exists yet, or ErrCorrupt if the
// stored tracked set cannot be unmarshalled or violates monotonicity.
func (s *postgresStore) Load(ctx context.Context, chainID string) (Cursor, error) {
	row := s.db.QueryRow(ctx, `SELECT highest_seen, tracked, updated_at FROM cursors WHERE chain_id = $1`, chainID)

	var highestSeen uint64
	var trackedRaw []byte
	var updatedAt time.Time
	if err := row.Scan(&highestSeen, &trackedRaw, &updatedAt); err != nil {
		if postgres.IsNoRows(err) {
			return NewCursor(chainID), nil
		}
		return Cursor{}, fmt.Errorf("load cursor for %s: %w", chainID, err)
	}

	var raw map[string]TrackedProposal
	if err := json.Unmarshal(trackedRaw, &raw); err != nil {
		return Cursor{}, &ErrCorrupt{ChainID: chainID, Reason: fmt.Sprintf("unmarshal tracked set: %v", err)}
	}

	tracked := make(map[uint64]TrackedProposal, len(raw))
	for idStr, snapshot := range raw {
		var id uint64
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			return Cursor{}, &ErrCorrupt{ChainID: chainID, Reason: fmt.Sprintf("non-numeric tracked key %q", idStr)}
		}
		if id > highestSeen {
			return Cursor{}, &ErrCorrupt{ChainID: chainID, Reason: fmt.Sprintf("tracked id %d exceeds highestSeen %d", id, highestSeen)}
		}
		tracked[id] = snapshot
	}

	return Cursor{ChainID: chainID, HighestSeen: highestSeen, Tracked: tracked, UpdatedAt: updatedAt}, nil
}

// Save replaces the chain's cursor row wholesale (§3.1: "ON CONFLICT (chain_id) DO UPDATE").
func (s *postgresStore) Save(ctx context.Context, c Cursor) error {
	raw := make(map[string]TrackedProposal, len(c.Tracked))
	for id, snapshot := range c.Tracked {
		raw[fmt.Sprintf("%d", id)] = snapshot
	}
	trackedJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal tracked set: %w", err)
	}

	err = s.db.Exec(ctx, `
		INSERT INTO cursors (chain_id, highest_seen, tracked, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chain_id) DO UPDATE SET
			highest_seen = EXCLUDED.highest_seen,
			tracked = EXCLUDED.tracked,
			updated_at = EXCLUDED.updated_at
	`, c.ChainID, c.HighestSeen, trackedJSON)
	if err != nil {
		return fmt.Errorf("save cursor for %s: %w", c.ChainID, err)
	}
	return nil
}

// Event is emitted by a tick when a proposal is new or its status, title,
// description or votingEnd changed (§4.2). Distinct chains are unordered with respect to each other, but
// events for a single (chainID, proposalID) are delivered in observed order.
type Event struct {
	Kind     EventKind
	Proposal chain.Proposal
	// OldStatus is set on EventChanged; zero value on EventNew.
	OldStatus chain.ProposalStatus
}

// EventKind distinguishes a first observation from a change to a tracked
// proposal.
type EventKind int

const (
	EventNew EventKind = iota
	EventChanged
)
