package chain

import "time"

// ProposalStatus is the lifecycle state of a governance proposal.
type ProposalStatus string

const (
	StatusDeposit  ProposalStatus = "DEPOSIT"
	StatusVoting   ProposalStatus = "VOTING"
	StatusPassed   ProposalStatus = "PASSED"
	StatusRejected ProposalStatus = "REJECTED"
	StatusFailed   ProposalStatus = "FAILED"
)

// statusRank orders statuses along the partial order DEPOSIT < VOTING <
// PASSED/REJECTED/FAILED (§4.2). Terminal statuses share a rank since the spec
// does not order them against each other.
var statusRank = map[ProposalStatus]int{
	StatusDeposit:  0,
	StatusVoting:   1,
	StatusPassed:   2,
	StatusRejected: 2,
	StatusFailed:   2,
}

// Rank returns the partial-order rank of a status, or -1 if unknown.
func (s ProposalStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// IsTerminal reports whether s is one of PASSED, REJECTED, FAILED.
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// LaterOf returns whichever of a, b ranks later in the partial order, used to
// tie-break two different statuses observed for the same proposalID in one tick.
func LaterOf(a, b ProposalStatus) ProposalStatus {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ChainDescriptor identifies one monitored chain and its RPC endpoints.
// Immutable within a process run; reloaded at start only (§3).
type ChainDescriptor struct {
	ChainID   string
	Name      string
	Endpoints []string
}

// ProposalSummary is the lightweight shape returned by ListActive.
type ProposalSummary struct {
	ProposalID uint64
	Status     ProposalStatus
}

// Proposal is the full observed state of a governance proposal on one chain (§3).
type Proposal struct {
	ChainID     string
	ProposalID  uint64
	Title       string
	Description string
	Status      ProposalStatus
	VotingStart *time.Time
	VotingEnd   *time.Time
	SubmitTime  time.Time
	Proposer    string
	Type        string
}
