package analyzer

import (
	"testing"

	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		title, desc string
		want        Category
	}{
		{"Software Upgrade v14", "Chain upgrade to v14 binary", CategoryUpgrade},
		{"IBC client update", "Relayer channel maintenance", CategoryIBC},
		{"Community pool spend for grants", "Fund the ecosystem grant program", CategoryCommunityPoolSpend},
		{"Adjust min deposit parameter", "Change the min deposit parameter", CategoryParameterChange},
		{"Signaling proposal", "This is a non-binding text proposal", CategoryText},
		{"Rename the mascot", "No relevant keywords here", CategoryOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.title, c.desc), "Classify(%q, %q)", c.title, c.desc)
	}
}

func TestChainContextFallback(t *testing.T) {
	assert.NotEmpty(t, chainContextFor("unknown-1", "UnknownChain"))
	assert.NotEmpty(t, chainContextFor("cosmoshub-4", "Cosmos Hub"))
}

func TestBuildPromptIsDeterministicRegardlessOfWeightMapOrder(t *testing.T) {
	p := chain.Proposal{
		ChainID:    "osmosis-1",
		ProposalID: 848,
		Title:      "Increase taker fees",
		Status:     chain.StatusVoting,
	}
	policy := subscriber.Policy{
		RiskTolerance: subscriber.RiskLow,
		Weights: map[string]float64{
			"zeta":  0.2,
			"alpha": 0.5,
			"mid":   0.3,
		},
	}

	first := BuildPrompt(p, "Osmosis", policy)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildPrompt(p, "Osmosis", policy), "BuildPrompt must not vary across calls with the same inputs")
	}
	assert.Regexp(t, `(?s)Weight\[alpha\].*Weight\[mid\].*Weight\[zeta\]`, first, "weight keys must be emitted in sorted order")
}
