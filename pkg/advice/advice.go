// Package advice renders the per-subscriber materialization of an Analysis
// for one proposal (§3, §4.6).
package advice

import (
	"fmt"
	"time"

	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/subscriber"
)

// Decision is the subscriber-facing vote recommendation (§3).
type Decision string

const (
	DecisionYes     Decision = "YES"
	DecisionNo      Decision = "NO"
	DecisionAbstain Decision = "ABSTAIN"
)

var decisionTable = map[analysis.Recommendation]Decision{
	analysis.RecommendApprove: DecisionYes,
	analysis.RecommendReject:  DecisionNo,
	analysis.RecommendAbstain: DecisionAbstain,
}

// Advice is the per-(proposal, subscriber) materialization of an Analysis (§3).
// Invariant: derived deterministically from one Analysis and one Policy;
// regenerating from the same inputs produces byte-identical fields except
// CreatedAt.
type Advice struct {
	ChainID      string
	ChainName    string
	ProposalID   uint64
	Title        string
	SubscriberID string
	Decision     Decision
	Rationale    string
	Confidence   float64
	CreatedAt    time.Time
}

// Render maps an Analysis and a Subscriber's Policy into an Advice (§4.6
// step 3). createdAt is passed in rather than computed here so the function
// itself stays a pure, deterministic mapping. chainName and title are carried
// through so the Delivery Gate can format the §6 notification subject
// template without reaching back into the Chain Client.
func Render(chainID, chainName string, proposalID uint64, title string, sub subscriber.Subscriber, a analysis.Analysis, createdAt time.Time) Advice {
	decision := decisionTable[a.Recommendation]
	rationale := fmt.Sprintf("%s %s", alignmentPrefix(sub.Policy.RiskTolerance, a.RiskAssessment), a.Reasoning)

	return Advice{
		ChainID:      chainID,
		ChainName:    chainName,
		ProposalID:   proposalID,
		Title:        title,
		SubscriberID: sub.SubscriberID,
		Decision:     decision,
		Rationale:    rationale,
		Confidence:   a.Confidence,
		CreatedAt:    createdAt,
	}
}

// alignmentPrefix derives a one-line policy-alignment statement from the
// subscriber's riskTolerance and the analysis's riskAssessment (§4.6 step 3).
func alignmentPrefix(tolerance subscriber.RiskTolerance, risk analysis.RiskAssessment) string {
	toleranceRank := riskRank[string(tolerance)]
	assessmentRank := riskRank[string(risk)]

	switch {
	case assessmentRank > toleranceRank:
		return fmt.Sprintf("This proposal carries %s risk, above your %s risk tolerance.", risk, tolerance)
	case assessmentRank < toleranceRank:
		return fmt.Sprintf("This proposal carries %s risk, comfortably within your %s risk tolerance.", risk, tolerance)
	default:
		return fmt.Sprintf("This proposal's %s risk matches your declared tolerance.", risk)
	}
}

var riskRank = map[string]int{
	"LOW":    0,
	"MEDIUM": 1,
	"HIGH":   2,
}
