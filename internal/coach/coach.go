// Package coach grades the finished call and produces structured feedback.
//
// The Coach prompts the backend for a strict JSON object, unwraps markdown
// fences from the reply, and clamps the score into the 1-10 range. When parsing or
// generation fails it falls back to canned locale feedback with score 0, the
// reserved value for "no real grade".
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kronitek/coldcall/internal/fallback"
	"github.com/kronitek/coldcall/internal/gatekeeper"
	"github.com/kronitek/coldcall/internal/observe"
	"github.com/kronitek/coldcall/pkg/provider/llm"
	"github.com/kronitek/coldcall/pkg/types"
)

const feedbackMaxTokens = 1024

// Coach generates post-call feedback on top of an [llm.Provider].
// Safe for concurrent use.
type Coach struct {
	provider llm.Provider
	log      *slog.Logger
}

// New creates a Coach. A nil logger defaults to slog.Default().
func New(provider llm.Provider, log *slog.Logger) *Coach {
	if log == nil {
		log = slog.Default()
	}
	return &Coach{provider: provider, log: log}
}

// Evaluate analyses the dialogue and returns feedback on the trainee's
// performance. success reports whether the gatekeeper connected the call.
// Evaluate never returns an error: any failure yields the locale's canned
// feedback with OverallScore 0.
func (c *Coach) Evaluate(ctx context.Context, sc types.Scenario, turns []types.Turn, success bool, locale string) types.Feedback {
	ctx, span := observe.StartSpan(ctx, "coach.evaluate", trace.WithAttributes(
		attribute.String("scenario", sc.ID),
		attribute.Bool("success", success),
	))
	defer span.End()

	if countUserTurns(turns) == 0 {
		// The state machine guards this already; an empty dialogue cannot be
		// graded meaningfully.
		c.log.Warn("evaluate called without user turns", "scenario", sc.ID)
		return fallback.Resolve(locale).Feedback
	}

	req := llm.CompletionRequest{
		SystemPrompt: evaluatorInstruction(locale),
		Messages: []types.Message{
			{Role: "user", Content: analysisPrompt(sc, turns, success)},
		},
		MaxTokens: feedbackMaxTokens,
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		c.log.Error("feedback generation failed", "scenario", sc.ID, "error", err)
		return fallback.Resolve(locale).Feedback
	}

	fb, err := parseFeedback(resp.Content)
	if err != nil {
		c.log.Error("feedback response not parseable",
			"scenario", sc.ID, "error", err)
		return fallback.Resolve(locale).Feedback
	}
	return fb
}

// evaluatorInstruction is the system prompt framing the model as a sales
// trainer and pinning the response to bare JSON.
func evaluatorInstruction(locale string) string {
	var b strings.Builder
	b.WriteString("You are an expert trainer in B2B sales for industrial equipment.\n")
	b.WriteString("Your task is to analyze the dialogue between a sales manager and a gatekeeper.\n")
	b.WriteString("Provide constructive feedback on the manager's performance.\n")
	b.WriteString("Evaluate their strategy, the techniques used, strengths, and weaknesses.\n")
	b.WriteString("Offer specific, actionable advice for improvement.\n\n")
	b.WriteString("Respond with a single JSON object and nothing else, using this shape:\n")
	b.WriteString(`{"strengths": ["..."], "improvements": ["..."], "overallScore": 7, "summary": "..."}` + "\n")
	b.WriteString("strengths: 2-3 points on what the manager did well.\n")
	b.WriteString("improvements: 2-3 specific tips for improvement.\n")
	b.WriteString("overallScore: an integer on a 10-point scale.\n")
	b.WriteString("summary: a brief summary and key takeaway for the manager.\n")
	fmt.Fprintf(&b, "Write all text in the language of locale %q.\n", locale)
	return b.String()
}

// analysisPrompt renders the scenario, the dialogue, and the outcome into the
// analysis request. The framing depends on whether the trainee got through.
func analysisPrompt(sc types.Scenario, turns []types.Turn, success bool) string {
	var b strings.Builder
	b.WriteString("Analyze the following dialogue in the context of the scenario:\n")
	fmt.Fprintf(&b, "Scenario: %s\n", sc.Title)
	fmt.Fprintf(&b, "Description: %s\n", sc.Description)
	fmt.Fprintf(&b, "Gatekeeper Persona: %s\n\n", sc.GatekeeperPersona)

	b.WriteString("Dialogue:\n")
	for _, t := range turns {
		speaker := "Gatekeeper"
		if t.Speaker == types.SpeakerUser {
			speaker = "Manager"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, t.Text)
	}
	b.WriteString("\n")

	if success {
		b.WriteString("Outcome: The manager successfully reached the decision maker.\n\n")
		b.WriteString("Your feedback should reflect the outcome. ")
		b.WriteString("Your \"strengths\" should highlight the specific tactics that led to success. ")
		b.WriteString("Your \"summary\" should be congratulatory but still offer a key takeaway.\n")
	} else {
		b.WriteString("Outcome: The manager ended the simulation without reaching the decision maker.\n\n")
		b.WriteString("Your feedback should reflect the outcome. ")
		b.WriteString("Your \"improvements\" should focus on what they could have done differently to get past the gatekeeper.\n")
	}
	return b.String()
}

// parseFeedback decodes the model's JSON reply, tolerating markdown fences,
// and clamps the score into [1, 10].
func parseFeedback(raw string) (types.Feedback, error) {
	cleaned := gatekeeper.UnwrapFences(raw)

	var fb types.Feedback
	if err := json.Unmarshal([]byte(cleaned), &fb); err != nil {
		return types.Feedback{}, fmt.Errorf("coach: decode feedback: %w", err)
	}
	if len(fb.Strengths) == 0 && len(fb.Improvements) == 0 && fb.Summary == "" {
		return types.Feedback{}, fmt.Errorf("coach: feedback object is empty")
	}

	if fb.OverallScore < 1 {
		fb.OverallScore = 1
	}
	if fb.OverallScore > 10 {
		fb.OverallScore = 10
	}
	return fb, nil
}

func countUserTurns(turns []types.Turn) int {
	n := 0
	for _, t := range turns {
		if t.Speaker == types.SpeakerUser {
			n++
		}
	}
	return n
}
