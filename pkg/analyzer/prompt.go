package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
)

// Category is the fixed classification bucket a proposal falls into (§4.4).
type Category string

const (
	CategoryParameterChange   Category = "PARAMETER_CHANGE"
	CategoryCommunityPoolSpend Category = "COMMUNITY_POOL_SPEND"
	CategoryUpgrade           Category = "UPGRADE"
	CategoryIBC               Category = "IBC"
	CategoryText              Category = "TEXT"
	CategoryOther             Category = "OTHER"
)

// categoryKeywords is deliberately a plain keyword table, not an NLP model: no
// library in the retrieval pack fits a six-bucket classifier this small, so this
// piece is hand-rolled stdlib strings matching, noted as a stdlib-justified piece
// in DESIGN.md.
var categoryKeywords = map[Category][]string{
	CategoryParameterChange:    {"parameter", "param change", "min deposit", "inflation rate", "tax rate", "fee"},
	CategoryCommunityPoolSpend: {"community pool", "community-pool", "grant", "funding request", "spend proposal"},
	CategoryUpgrade:            {"software upgrade", "upgrade proposal", "chain upgrade", "hard fork", "binary upgrade"},
	CategoryIBC:                {"ibc", "interchain", "relayer", "client update", "channel"},
	CategoryText:               {"signaling", "text proposal", "non-binding"},
}

// Classify chooses exactly one Category by keyword matching against title+description,
// defaulting to CategoryOther when nothing matches (§4.4).
func Classify(title, description string) Category {
	haystack := strings.ToLower(title + " " + description)
	for _, cat := range []Category{CategoryUpgrade, CategoryIBC, CategoryCommunityPoolSpend, CategoryParameterChange, CategoryText} {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(haystack, kw) {
				return cat
			}
		}
	}
	return CategoryOther
}

// chainContext is static background injected per chain (§4.4's "chain context
// block"). Chains not present here get a generic Cosmos SDK blurb.
var chainContext = map[string]string{
	"cosmoshub-4": "Cosmos Hub is the original Cosmos SDK chain; ATOM stakers vote, community pool spend proposals are common and closely scrutinized.",
	"osmosis-1":   "Osmosis is a DEX-focused Cosmos SDK chain; proposals frequently touch pool incentives, taker fees, and protocol revenue parameters.",
}

func chainContextFor(chainID, name string) string {
	if ctx, ok := chainContext[chainID]; ok {
		return ctx
	}
	return fmt.Sprintf("%s is a Cosmos SDK chain; no chain-specific background is on file.", name)
}

const systemPreamble = `You are advising an enterprise subscriber on how to vote on a Cosmos SDK governance proposal. You do not cast votes; you only recommend.

Respond with a single JSON object matching exactly this schema:
{
  "recommendation": "APPROVE" | "REJECT" | "ABSTAIN",
  "confidence": <number between 0 and 1>,
  "reasoning": "<text>",
  "risk_assessment": "LOW" | "MEDIUM" | "HIGH",
  "economic_impact": "POSITIVE" | "NEGATIVE" | "NEUTRAL",
  "security_implications": "MINIMAL" | "MODERATE" | "SIGNIFICANT",
  "key_considerations": ["<chain-specific consideration>", "<economic or technical consideration>", "<governance consideration>"],
  "implementation_risk": "LOW" | "MEDIUM" | "HIGH",
  "chain_specific_notes": "<notes specific to this chain>"
}

The first four fields are required. The remaining fields are optional supporting detail: include them when you have something concrete to say, omit any you don't.

Use only the vocabularies listed above for recommendation, risk_assessment, economic_impact, security_implications, and implementation_risk. Do not include any text outside the JSON object.`

// BuildPrompt constructs the deterministic three-layer prompt for a (Proposal,
// Policy) pair (§4.4): a fixed system preamble, a category/chain-context layer,
// and the proposal plus policy verbatim.
func BuildPrompt(p chain.Proposal, chainName string, policy subscriber.Policy) string {
	category := Classify(p.Title, p.Description)
	ctxBlock := chainContextFor(p.ChainID, chainName)

	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Category: %s\nChain context: %s\n\n", category, ctxBlock)
	fmt.Fprintf(&sb, "Proposal:\n  Chain: %s\n  ID: %d\n  Title: %s\n  Description: %s\n  Status: %s\n  Type: %s\n\n",
		p.ChainID, p.ProposalID, p.Title, p.Description, p.Status, p.Type)

	sb.WriteString("Subscriber policy:\n")
	fmt.Fprintf(&sb, "  Risk tolerance: %s\n", policy.RiskTolerance)

	// Weights is a map; iterate keys in sorted order so the prompt stays
	// deterministic for a given (Proposal, Policy) pair (§4.4).
	weightNames := make([]string, 0, len(policy.Weights))
	for name := range policy.Weights {
		weightNames = append(weightNames, name)
	}
	sort.Strings(weightNames)
	for _, name := range weightNames {
		fmt.Fprintf(&sb, "  Weight[%s]: %.2f\n", name, policy.Weights[name])
	}
	for _, blurb := range policy.Blurbs {
		fmt.Fprintf(&sb, "  Note: %s\n", blurb)
	}

	return sb.String()
}

// RepairPrompt appends the teacher-idiom "re-emit in schema" instruction after a
// strict-parse failure, giving the provider one automatic repair attempt (§4.4).
func RepairPrompt(original, malformed, parseErr string) string {
	return fmt.Sprintf("%s\n\nYour previous response could not be parsed (%s). You responded with:\n%s\n\nPlease re-emit your answer as a single valid JSON object matching the schema above, with no other text.",
		original, parseErr, malformed)
}
