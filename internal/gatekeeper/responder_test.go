package gatekeeper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kronitek/coldcall/pkg/provider/llm"
	llmmock "github.com/kronitek/coldcall/pkg/provider/llm/mock"
	"github.com/kronitek/coldcall/pkg/types"
)

var testScenario = types.Scenario{
	ID:                "cold_call_factory",
	Title:             "Cold call to a machine factory",
	GatekeeperPersona: "Elena, an experienced secretary. Values specifics and brevity.",
	DecisionMaker:     "Chief Engineer, Ivan Petrovich",
	CompanyProfile:    "ZavodMash - industrial machine tools",
	Difficulty:        types.DifficultyMedium,
}

func completeText(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: text}
}

func TestRespond_PlainReply(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: completeText("What is this call regarding?")}
	r := NewResponder(p, nil)

	reply := r.Respond(context.Background(), testScenario, []types.Turn{
		{Speaker: types.SpeakerUser, Text: "Hello, I'd like to talk about your equipment."},
	}, "en-US")

	if reply.Connected {
		t.Error("Connected = true, want false")
	}
	if reply.Fallback {
		t.Error("Fallback = true, want false")
	}
	if reply.Text != "What is this call regarding?" {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestRespond_ConnectSentinelStripped(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: completeText("[CONNECT]Alright, I will put you through to Ivan Petrovich. Please hold."),
	}
	r := NewResponder(p, nil)

	reply := r.Respond(context.Background(), testScenario, nil, "en-US")

	if !reply.Connected {
		t.Fatal("Connected = false, want true")
	}
	if strings.Contains(reply.Text, "[CONNECT]") {
		t.Errorf("sentinel not stripped: %q", reply.Text)
	}
	if !strings.HasPrefix(reply.Text, "Alright") {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestRespond_ConnectInsideFence(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: completeText("```\n[CONNECT]One moment, connecting you now.\n```"),
	}
	r := NewResponder(p, nil)

	reply := r.Respond(context.Background(), testScenario, nil, "en-US")
	if !reply.Connected {
		t.Fatal("Connected = false, want true")
	}
	if reply.Text != "One moment, connecting you now." {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestRespond_ProviderFailureUsesFallbackUtterance(t *testing.T) {
	p := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	r := NewResponder(p, nil)

	reply := r.Respond(context.Background(), testScenario, nil, "en-US")

	if !reply.Fallback {
		t.Error("Fallback = false, want true")
	}
	if reply.Connected {
		t.Error("Connected = true, want false on failure")
	}
	if reply.Text != "Sorry, I'm experiencing a technical issue. Please try again." {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestRespond_TemperatureAndHistory(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: completeText("Go on.")}
	r := NewResponder(p, nil)

	turns := []types.Turn{
		{Speaker: types.SpeakerGatekeeper, Text: "Hello, front desk."},
		{Speaker: types.SpeakerUser, Text: "Hi, this is Kronitek."},
	}
	r.Respond(context.Background(), testScenario, turns, "en-US")

	req := p.LastRequest()
	if req.Temperature != 0.8 {
		t.Errorf("Temperature = %v, want 0.8", req.Temperature)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != "assistant" || req.Messages[1].Role != "user" {
		t.Errorf("roles = %q, %q", req.Messages[0].Role, req.Messages[1].Role)
	}
	if req.SystemPrompt == "" {
		t.Error("expected a system prompt")
	}
}

func TestRespond_NameGatingChangesPrompt(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: completeText("Noted.")}
	r := NewResponder(p, nil)

	r.Respond(context.Background(), testScenario, []types.Turn{
		{Speaker: types.SpeakerUser, Text: "I'm calling about your production line."},
	}, "en-US")
	withoutName := p.LastRequest().SystemPrompt

	r.Respond(context.Background(), testScenario, []types.Turn{
		{Speaker: types.SpeakerUser, Text: "Could you connect me with Ivan Petrovich?"},
	}, "en-US")
	withName := p.LastRequest().SystemPrompt

	if withoutName == withName {
		t.Error("system prompt should differ depending on whether the name was mentioned")
	}
	if !strings.Contains(withoutName, "Do not volunteer the name") {
		t.Error("prompt without name mention should forbid volunteering the name")
	}
}

func TestGreeting_FallsBackToStaticLine(t *testing.T) {
	p := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	r := NewResponder(p, nil)

	got := r.Greeting(context.Background(), testScenario, "en-US")
	if got != "Hello, this is the front desk. How can I help you?" {
		t.Errorf("Greeting = %q", got)
	}
}

func TestAnnounceConnect_NamesDecisionMaker(t *testing.T) {
	r := NewResponder(&llmmock.Provider{}, nil)
	got := r.AnnounceConnect(testScenario, "en-US")
	if !strings.Contains(got, "Ivan Petrovich") {
		t.Errorf("announcement %q does not name the decision maker", got)
	}
}

func TestUnwrapFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"```\nhello\n```", "hello"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```{\"a\":1}```", "{\"a\":1}"},
		{"  spaced  ", "spaced"},
	}
	for _, tt := range tests {
		if got := UnwrapFences(tt.in); got != tt.want {
			t.Errorf("UnwrapFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
