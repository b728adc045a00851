package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/govsentinel/sentinel/pkg/chain"
)

// Fingerprint identifies a unique analyzable snapshot of a proposal (§3). It is a
// cryptographic digest truncated to at least 96 bits (24 hex characters), computed
// from (chainID, proposalID, title, status) only — the policy digest is
// deliberately excluded per the Open Question resolution in DESIGN.md, so the
// first subscriber to trigger analysis for a proposal shapes the shared Analysis.
type Fingerprint string

// ComputeFingerprint hashes the four fields the spec names for Fingerprint (§3).
func ComputeFingerprint(chainID string, proposalID uint64, title string, status chain.ProposalStatus) Fingerprint {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s", chainID, proposalID, title, status)
	sum := h.Sum(nil)
	return Fingerprint(hex.EncodeToString(sum)[:24]) // 24 hex chars = 96 bits
}

// Recommendation is the AI-generated opinion enum (§3).
type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReject  Recommendation = "REJECT"
	RecommendAbstain Recommendation = "ABSTAIN"
)

// RiskAssessment is the analyzer's risk enum (§3).
type RiskAssessment string

const (
	RiskLow    RiskAssessment = "LOW"
	RiskMedium RiskAssessment = "MEDIUM"
	RiskHigh   RiskAssessment = "HIGH"
)

// Analysis is the AI-generated opinion attached to a Fingerprint (§3).
type Analysis struct {
	Fingerprint    Fingerprint
	Provider       string
	Recommendation Recommendation
	Confidence     float64
	Reasoning      string
	RiskAssessment RiskAssessment
	Structured     map[string]any
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// TTL returns the status-aware time-to-live for a freshly created Analysis (§4.3):
// 24h for DEPOSIT/VOTING, 7d for terminal statuses.
func TTL(status chain.ProposalStatus) time.Duration {
	if status.IsTerminal() {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// PurgeAge is the absolute retention ceiling regardless of status (§4.3).
const PurgeAge = 30 * 24 * time.Hour
