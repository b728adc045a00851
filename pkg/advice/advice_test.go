package advice

import (
	"testing"
	"time"

	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/subscriber"
)

func TestRenderDecisionMapping(t *testing.T) {
	cases := []struct {
		rec  analysis.Recommendation
		want Decision
	}{
		{analysis.RecommendApprove, DecisionYes},
		{analysis.RecommendReject, DecisionNo},
		{analysis.RecommendAbstain, DecisionAbstain},
	}
	sub := subscriber.Subscriber{SubscriberID: "sub-A", Policy: subscriber.Policy{RiskTolerance: subscriber.RiskLow}}
	for _, c := range cases {
		a := analysis.Analysis{Recommendation: c.rec, RiskAssessment: analysis.RiskLow, Reasoning: "x", Confidence: 0.5}
		got := Render("osmosis-1", "Osmosis", 848, "Increase taker fees", sub, a, time.Now())
		if got.Decision != c.want {
			t.Errorf("Render(%s) decision = %s, want %s", c.rec, got.Decision, c.want)
		}
	}
}

func TestRenderIsDeterministicExceptCreatedAt(t *testing.T) {
	sub := subscriber.Subscriber{SubscriberID: "sub-A", Policy: subscriber.Policy{RiskTolerance: subscriber.RiskMedium}}
	a := analysis.Analysis{Recommendation: analysis.RecommendApprove, RiskAssessment: analysis.RiskHigh, Reasoning: "risky but fine", Confidence: 0.7}

	first := Render("osmosis-1", "Osmosis", 848, "Increase taker fees", sub, a, time.Now())
	second := Render("osmosis-1", "Osmosis", 848, "Increase taker fees", sub, a, time.Now().Add(time.Hour))

	if first.Decision != second.Decision || first.Rationale != second.Rationale || first.Confidence != second.Confidence {
		t.Fatalf("expected byte-identical fields except CreatedAt:\n%+v\n%+v", first, second)
	}
	if first.CreatedAt.Equal(second.CreatedAt) {
		t.Fatal("expected CreatedAt to differ")
	}
}

func TestAlignmentPrefixReflectsRiskGap(t *testing.T) {
	sub := subscriber.Subscriber{Policy: subscriber.Policy{RiskTolerance: subscriber.RiskLow}}
	a := analysis.Analysis{Recommendation: analysis.RecommendApprove, RiskAssessment: analysis.RiskHigh, Reasoning: "x"}
	got := Render("osmosis-1", "Osmosis", 1, "Test proposal", sub, a, time.Now())
	if got.Rationale == "" {
		t.Fatal("expected non-empty rationale")
	}
}
