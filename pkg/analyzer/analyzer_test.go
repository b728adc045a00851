package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name      string
	responses []string // consumed in order, one per Analyze call
	calls     int
	err       error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	defer func() { f.calls++ }()
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.responses) {
		return f.responses[len(f.responses)-1], nil
	}
	return f.responses[f.calls], nil
}

func testProposal() chain.Proposal {
	return chain.Proposal{
		ChainID:    "cosmoshub-4",
		ProposalID: 1,
		Title:      "Test proposal",
		Status:     chain.StatusVoting,
	}
}

func TestAnalyzeFirstProviderSucceeds(t *testing.T) {
	good := `{"recommendation":"APPROVE","confidence":0.9,"reasoning":"fine","risk_assessment":"LOW"}`
	p1 := &fakeProvider{name: "p1", responses: []string{good}}
	p2 := &fakeProvider{name: "p2", responses: []string{good}}
	a := New([]Provider{p1, p2}, zap.NewNop())

	result := a.Analyze(context.Background(), testProposal(), "Cosmos Hub", subscriber.Policy{})
	if result.Provider != "p1" {
		t.Fatalf("expected p1 to serve the answer, got %s", result.Provider)
	}
	if p2.calls != 0 {
		t.Fatalf("expected p2 untouched, got %d calls", p2.calls)
	}
}

func TestAnalyzeFallsThroughOnTransientError(t *testing.T) {
	good := `{"recommendation":"APPROVE","confidence":0.9,"reasoning":"fine","risk_assessment":"LOW"}`
	p1 := &fakeProvider{name: "p1", err: errors.New("network blip")}
	p2 := &fakeProvider{name: "p2", responses: []string{good}}
	a := New([]Provider{p1, p2}, zap.NewNop())

	result := a.Analyze(context.Background(), testProposal(), "Cosmos Hub", subscriber.Policy{})
	if result.Provider != "p2" {
		t.Fatalf("expected fallback to p2, got %s", result.Provider)
	}
}

func TestAnalyzeRepairsMalformedOutputOnce(t *testing.T) {
	malformed := "not json at all"
	good := `{"recommendation":"REJECT","confidence":0.6,"reasoning":"repaired","risk_assessment":"MEDIUM"}`
	p1 := &fakeProvider{name: "p1", responses: []string{malformed, good}}
	a := New([]Provider{p1}, zap.NewNop())

	result := a.Analyze(context.Background(), testProposal(), "Cosmos Hub", subscriber.Policy{})
	if result.Recommendation != analysis.RecommendReject {
		t.Fatalf("expected repaired REJECT, got %v (provider calls=%d)", result.Recommendation, p1.calls)
	}
	if p1.calls != 2 {
		t.Fatalf("expected exactly 2 calls (original + repair), got %d", p1.calls)
	}
}

func TestAnalyzeCarriesOptionalStructuredFieldsThrough(t *testing.T) {
	good := `{"recommendation":"APPROVE","confidence":0.9,"reasoning":"fine","risk_assessment":"LOW",
		"economic_impact":"NEUTRAL","key_considerations":["one consideration"]}`
	p1 := &fakeProvider{name: "p1", responses: []string{good}}
	a := New([]Provider{p1}, zap.NewNop())

	result := a.Analyze(context.Background(), testProposal(), "Cosmos Hub", subscriber.Policy{})
	if result.Structured["economic_impact"] != "NEUTRAL" {
		t.Fatalf("expected economic_impact to reach the Analysis, got %+v", result.Structured)
	}
}

func TestAnalyzeAllProvidersFailProducesDeterministicFallback(t *testing.T) {
	p1 := &fakeProvider{name: "p1", err: errors.New("down")}
	p2 := &fakeProvider{name: "p2", responses: []string{"still not json", "also not json"}}
	a := New([]Provider{p1, p2}, zap.NewNop())

	result := a.Analyze(context.Background(), testProposal(), "Cosmos Hub", subscriber.Policy{})
	if result.Provider != "none" {
		t.Fatalf("expected fallback provider 'none', got %s", result.Provider)
	}
	if result.Recommendation != analysis.RecommendAbstain || result.Confidence != 0.0 || result.RiskAssessment != analysis.RiskHigh {
		t.Fatalf("unexpected fallback analysis: %+v", result)
	}
	if result.Reasoning != "no provider available" {
		t.Fatalf("unexpected fallback reasoning: %s", result.Reasoning)
	}
}
