package coach

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/kronitek/coldcall/pkg/provider/llm"
	llmmock "github.com/kronitek/coldcall/pkg/provider/llm/mock"
	"github.com/kronitek/coldcall/pkg/types"
)

var testScenario = types.Scenario{
	ID:                "cold_call_factory",
	Title:             "Cold call to a machine factory",
	Description:       "Get through to the chief engineer.",
	GatekeeperPersona: "Elena, an experienced secretary.",
	DecisionMaker:     "Chief Engineer, Ivan Petrovich",
	Difficulty:        types.DifficultyMedium,
}

var dialogue = []types.Turn{
	{Speaker: types.SpeakerGatekeeper, Text: "Hello, front desk."},
	{Speaker: types.SpeakerUser, Text: "Good morning, this is Kronitek."},
	{Speaker: types.SpeakerGatekeeper, Text: "What is this regarding?"},
	{Speaker: types.SpeakerUser, Text: "We reduce tooling downtime by 30 percent."},
}

const validJSON = `{"strengths": ["Clear value proposition"], "improvements": ["Ask for the name earlier"], "overallScore": 7, "summary": "Solid call."}`

func TestEvaluate_ParsesJSON(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validJSON}}
	c := New(p, nil)

	fb := c.Evaluate(context.Background(), testScenario, dialogue, false, "en-US")

	if fb.OverallScore != 7 {
		t.Errorf("OverallScore = %d, want 7", fb.OverallScore)
	}
	if len(fb.Strengths) != 1 || fb.Strengths[0] != "Clear value proposition" {
		t.Errorf("Strengths = %v", fb.Strengths)
	}
	if fb.Summary != "Solid call." {
		t.Errorf("Summary = %q", fb.Summary)
	}
}

func TestEvaluate_UnwrapsFencedJSON(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "```json\n" + validJSON + "\n```"},
	}
	c := New(p, nil)

	fb := c.Evaluate(context.Background(), testScenario, dialogue, true, "en-US")
	if fb.OverallScore != 7 {
		t.Errorf("OverallScore = %d, want 7", fb.OverallScore)
	}
}

func TestEvaluate_ClampsScore(t *testing.T) {
	tests := []struct {
		raw  int
		want int
	}{
		{0, 1},
		{-3, 1},
		{15, 10},
		{10, 10},
	}
	for _, tt := range tests {
		content := strings.Replace(validJSON, `"overallScore": 7`, `"overallScore": `+strconv.Itoa(tt.raw), 1)
		p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: content}}
		c := New(p, nil)

		fb := c.Evaluate(context.Background(), testScenario, dialogue, false, "en-US")
		if fb.OverallScore != tt.want {
			t.Errorf("raw score %d: got %d, want %d", tt.raw, fb.OverallScore, tt.want)
		}
	}
}

func TestEvaluate_ProviderFailureUsesFallback(t *testing.T) {
	p := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	c := New(p, nil)

	fb := c.Evaluate(context.Background(), testScenario, dialogue, false, "en-US")
	if fb.OverallScore != 0 {
		t.Errorf("fallback OverallScore = %d, want 0", fb.OverallScore)
	}
	if len(fb.Improvements) == 0 {
		t.Error("fallback feedback should carry an explanation")
	}
}

func TestEvaluate_MalformedJSONUsesFallback(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "I think the call went well overall."}}
	c := New(p, nil)

	fb := c.Evaluate(context.Background(), testScenario, dialogue, false, "en-US")
	if fb.OverallScore != 0 {
		t.Errorf("fallback OverallScore = %d, want 0", fb.OverallScore)
	}
}

func TestEvaluate_OutcomeChangesFraming(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validJSON}}
	c := New(p, nil)

	c.Evaluate(context.Background(), testScenario, dialogue, true, "en-US")
	successPrompt := p.LastRequest().Messages[0].Content

	c.Evaluate(context.Background(), testScenario, dialogue, false, "en-US")
	failurePrompt := p.LastRequest().Messages[0].Content

	if !strings.Contains(successPrompt, "successfully reached the decision maker") {
		t.Error("success outcome not reflected in prompt")
	}
	if !strings.Contains(failurePrompt, "without reaching the decision maker") {
		t.Error("failure outcome not reflected in prompt")
	}
}

func TestEvaluate_NoUserTurns(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validJSON}}
	c := New(p, nil)

	fb := c.Evaluate(context.Background(), testScenario, []types.Turn{
		{Speaker: types.SpeakerGatekeeper, Text: "Hello?"},
	}, false, "en-US")

	if fb.OverallScore != 0 {
		t.Errorf("OverallScore = %d, want 0 for ungradeable dialogue", fb.OverallScore)
	}
	if len(p.Requests()) != 0 {
		t.Error("provider should not be called without user turns")
	}
}
