package chain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/govsentinel/sentinel/pkg/retry"
	"go.uber.org/zap"
)

// cosmosStatus maps the Cosmos SDK x/gov wire status strings to our ProposalStatus.
var cosmosStatus = map[string]ProposalStatus{
	"PROPOSAL_STATUS_DEPOSIT_PERIOD": StatusDeposit,
	"PROPOSAL_STATUS_VOTING_PERIOD":  StatusVoting,
	"PROPOSAL_STATUS_PASSED":         StatusPassed,
	"PROPOSAL_STATUS_REJECTED":       StatusRejected,
	"PROPOSAL_STATUS_FAILED":         StatusFailed,
}

// gov/v1 REST shapes (subset of fields this client cares about).
type govProposal struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	SubmitTime       string `json:"submit_time"`
	VotingStartTime  string `json:"voting_start_time"`
	VotingEndTime    string `json:"voting_end_time"`
	Proposer         string `json:"proposer"`
	Messages         []struct {
		Type string `json:"@type"`
	} `json:"messages"`
	Metadata string `json:"metadata"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
}

type govProposalsResponse struct {
	Proposals []govProposal `json:"proposals"`
}

type govProposalResponse struct {
	Proposal govProposal `json:"proposal"`
}

const (
	proposalsPath = "/cosmos/gov/v1/proposals?proposal_status=0"
	proposalPath  = "/cosmos/gov/v1/proposals/%d"
)

// Client is the Chain Client interface the Watcher depends on (§4.1).
type Client interface {
	ListActive(ctx context.Context) ([]ProposalSummary, error)
	Fetch(ctx context.Context, proposalID uint64) (Proposal, error)
}

// client implements Client against one chain's endpoint set.
type client struct {
	chainID string
	http    *HTTPClient
	logger  *zap.Logger
	cfg     retry.Config
}

// NewClient builds a Client for chainID backed by the given endpoints.
func NewClient(chainID string, endpoints []string, logger *zap.Logger) Client {
	cfg := retry.ChainClientConfig()
	cfg.ClassifyFunc = classify
	return &client{
		chainID: chainID,
		http:    NewHTTPClient(Opts{Endpoints: endpoints}),
		logger:  logger,
		cfg:     cfg,
	}
}

// ListActive returns proposals whose status is not terminal (§4.1).
func (c *client) ListActive(ctx context.Context) ([]ProposalSummary, error) {
	var resp govProposalsResponse
	err := retry.WithBackoff(ctx, c.cfg, c.logger, fmt.Sprintf("chain.%s.ListActive", c.chainID), func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return c.http.doJSON(attemptCtx, "GET", proposalsPath, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("chain %s: list active proposals: %w", c.chainID, err)
	}

	out := make([]ProposalSummary, 0, len(resp.Proposals))
	for _, p := range resp.Proposals {
		id, parseErr := strconv.ParseUint(p.ID, 10, 64)
		if parseErr != nil {
			c.logger.Warn("chain client: skipping proposal with unparsable id",
				zap.String("chain_id", c.chainID), zap.String("raw_id", p.ID))
			continue
		}
		status, ok := cosmosStatus[p.Status]
		if !ok {
			c.logger.Warn("chain client: unknown proposal status",
				zap.String("chain_id", c.chainID), zap.String("status", p.Status))
			continue
		}
		if status.IsTerminal() {
			continue
		}
		out = append(out, ProposalSummary{ProposalID: id, Status: status})
	}
	return out, nil
}

// Fetch returns the full Proposal for proposalID (§4.1).
func (c *client) Fetch(ctx context.Context, proposalID uint64) (Proposal, error) {
	var resp govProposalResponse
	err := retry.WithBackoff(ctx, c.cfg, c.logger, fmt.Sprintf("chain.%s.Fetch", c.chainID), func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return c.http.doJSON(attemptCtx, "GET", fmt.Sprintf(proposalPath, proposalID), &resp)
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("chain %s: fetch proposal %d: %w", c.chainID, proposalID, err)
	}

	return toProposal(c.chainID, resp.Proposal), nil
}

func toProposal(chainID string, p govProposal) Proposal {
	id, _ := strconv.ParseUint(p.ID, 10, 64)
	status := cosmosStatus[p.Status]

	title := p.Title
	description := p.Summary
	msgType := ""
	if len(p.Messages) > 0 {
		msgType = p.Messages[0].Type
	}

	out := Proposal{
		ChainID:     chainID,
		ProposalID:  id,
		Title:       title,
		Description: description,
		Status:      status,
		Proposer:    p.Proposer,
		Type:        msgType,
	}
	if t, err := time.Parse(time.RFC3339, p.SubmitTime); err == nil {
		out.SubmitTime = t
	}
	if t, err := time.Parse(time.RFC3339, p.VotingStartTime); err == nil && !t.IsZero() {
		out.VotingStart = &t
	}
	if t, err := time.Parse(time.RFC3339, p.VotingEndTime); err == nil && !t.IsZero() {
		out.VotingEnd = &t
	}
	return out
}
