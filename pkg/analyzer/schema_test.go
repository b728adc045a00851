package analyzer

import (
	"strings"
	"testing"

	"github.com/govsentinel/sentinel/pkg/analysis"
)

func TestParseResultWellFormed(t *testing.T) {
	raw := `{"recommendation":"approve","confidence":0.85,"reasoning":"looks fine","risk_assessment":"low"}`
	rec, conf, reasoning, risk, _, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != analysis.RecommendApprove || risk != analysis.RiskLow || conf != 0.85 || reasoning != "looks fine" {
		t.Fatalf("unexpected parse: %v %v %v %v", rec, conf, reasoning, risk)
	}
}

func TestParseResultToleratesSurroundingProse(t *testing.T) {
	raw := "Sure, here is my answer:\n" +
		`{"recommendation":"REJECT","confidence":0.4,"reasoning":"too risky","risk_assessment":"HIGH"}` +
		"\nLet me know if you need anything else."
	rec, _, _, risk, _, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != analysis.RecommendReject || risk != analysis.RiskHigh {
		t.Fatalf("unexpected parse: %v %v", rec, risk)
	}
}

func TestParseResultMissingJSON(t *testing.T) {
	if _, _, _, _, _, err := ParseResult("no json here"); err == nil {
		t.Fatal("expected error for missing JSON object")
	}
}

func TestParseResultUnknownRecommendation(t *testing.T) {
	raw := `{"recommendation":"MAYBE","confidence":0.5,"reasoning":"x","risk_assessment":"LOW"}`
	if _, _, _, _, _, err := ParseResult(raw); err == nil || !strings.Contains(err.Error(), "unknown recommendation") {
		t.Fatalf("expected unknown recommendation error, got %v", err)
	}
}

func TestParseResultUnknownRisk(t *testing.T) {
	raw := `{"recommendation":"APPROVE","confidence":0.5,"reasoning":"x","risk_assessment":"EXTREME"}`
	if _, _, _, _, _, err := ParseResult(raw); err == nil || !strings.Contains(err.Error(), "unknown risk_assessment") {
		t.Fatalf("expected unknown risk_assessment error, got %v", err)
	}
}

func TestParseResultConfidenceOutOfRange(t *testing.T) {
	raw := `{"recommendation":"APPROVE","confidence":1.5,"reasoning":"x","risk_assessment":"LOW"}`
	if _, _, _, _, _, err := ParseResult(raw); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected out-of-range error, got %v", err)
	}
}

func TestParseResultCapturesOptionalStructuredFields(t *testing.T) {
	raw := `{
		"recommendation":"APPROVE","confidence":0.7,"reasoning":"solid","risk_assessment":"MEDIUM",
		"economic_impact":"POSITIVE","security_implications":"MINIMAL",
		"key_considerations":["validator set unaffected","modest fee increase"],
		"implementation_risk":"LOW","chain_specific_notes":"no IBC exposure"
	}`
	_, _, _, _, structured, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if structured["economic_impact"] != "POSITIVE" {
		t.Fatalf("expected economic_impact to be captured, got %+v", structured)
	}
	if structured["chain_specific_notes"] != "no IBC exposure" {
		t.Fatalf("expected chain_specific_notes to be captured, got %+v", structured)
	}
	considerations, ok := structured["key_considerations"].([]string)
	if !ok || len(considerations) != 2 {
		t.Fatalf("expected key_considerations to round-trip as a 2-element slice, got %+v", structured["key_considerations"])
	}
}

func TestParseResultOmitsBlankOptionalFields(t *testing.T) {
	raw := `{"recommendation":"APPROVE","confidence":0.5,"reasoning":"x","risk_assessment":"LOW"}`
	_, _, _, _, structured, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(structured) != 0 {
		t.Fatalf("expected no optional fields when the provider sends none, got %+v", structured)
	}
}

func TestParseResultMissingReasoning(t *testing.T) {
	raw := `{"recommendation":"APPROVE","confidence":0.5,"reasoning":"","risk_assessment":"LOW"}`
	if _, _, _, _, _, err := ParseResult(raw); err == nil || !strings.Contains(err.Error(), "missing reasoning") {
		t.Fatalf("expected missing reasoning error, got %v", err)
	}
}
