package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govsentinel/sentinel/pkg/analysis"
)

// rawResult is the wire shape providers are instructed to emit. The four
// required fields feed the Analysis's typed fields; the rest are the optional
// structured dimensions (§3's "SWOT, PESTEL, stakeholder impact,
// implementation assessment as free-form maps"), captured into
// Analysis.Structured when present rather than parsed strictly.
type rawResult struct {
	Recommendation       string   `json:"recommendation"`
	Confidence           float64  `json:"confidence"`
	Reasoning            string   `json:"reasoning"`
	RiskAssessment       string   `json:"risk_assessment"`
	EconomicImpact       string   `json:"economic_impact,omitempty"`
	SecurityImplications string   `json:"security_implications,omitempty"`
	KeyConsiderations    []string `json:"key_considerations,omitempty"`
	ImplementationRisk   string   `json:"implementation_risk,omitempty"`
	ChainSpecificNotes   string   `json:"chain_specific_notes,omitempty"`
}

var validRecommendations = map[string]analysis.Recommendation{
	"APPROVE": analysis.RecommendApprove,
	"REJECT":  analysis.RecommendReject,
	"ABSTAIN": analysis.RecommendAbstain,
}

var validRisks = map[string]analysis.RiskAssessment{
	"LOW":    analysis.RiskLow,
	"MEDIUM": analysis.RiskMedium,
	"HIGH":   analysis.RiskHigh,
}

// ParseResult strictly parses a provider's raw text response into the Analysis
// fields §3 requires, plus whatever optional structured dimensions the
// provider included. Extraneous text around a JSON object is tolerated by
// slicing to the first '{' and last '}' (providers occasionally wrap JSON in
// prose despite instructions); anything else is a schema failure (§4.4). The
// optional fields are never validated against a vocabulary — a provider that
// gets "economic_impact" wrong still produces a usable Analysis, it just
// carries a stranger Structured map.
func ParseResult(raw string) (analysis.Recommendation, float64, string, analysis.RiskAssessment, map[string]any, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return "", 0, "", "", nil, fmt.Errorf("no JSON object found in response")
	}

	var r rawResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err != nil {
		return "", 0, "", "", nil, fmt.Errorf("unmarshal: %w", err)
	}

	rec, ok := validRecommendations[strings.ToUpper(r.Recommendation)]
	if !ok {
		return "", 0, "", "", nil, fmt.Errorf("unknown recommendation %q", r.Recommendation)
	}
	risk, ok := validRisks[strings.ToUpper(r.RiskAssessment)]
	if !ok {
		return "", 0, "", "", nil, fmt.Errorf("unknown risk_assessment %q", r.RiskAssessment)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return "", 0, "", "", nil, fmt.Errorf("confidence %f out of range [0,1]", r.Confidence)
	}
	if r.Reasoning == "" {
		return "", 0, "", "", nil, fmt.Errorf("missing reasoning")
	}

	return rec, r.Confidence, r.Reasoning, risk, structuredFields(r), nil
}

// structuredFields collects whichever optional dimensions the provider
// actually populated into a free-form map (§3), omitting the ones it left
// blank rather than filling Structured with empty strings.
func structuredFields(r rawResult) map[string]any {
	s := make(map[string]any)
	if r.EconomicImpact != "" {
		s["economic_impact"] = r.EconomicImpact
	}
	if r.SecurityImplications != "" {
		s["security_implications"] = r.SecurityImplications
	}
	if len(r.KeyConsiderations) > 0 {
		s["key_considerations"] = r.KeyConsiderations
	}
	if r.ImplementationRisk != "" {
		s["implementation_risk"] = r.ImplementationRisk
	}
	if r.ChainSpecificNotes != "" {
		s["chain_specific_notes"] = r.ChainSpecificNotes
	}
	return s
}
