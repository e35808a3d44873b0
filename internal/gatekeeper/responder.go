// Package gatekeeper generates the gatekeeper persona's side of the
// conversation.
//
// The Responder turns the scenario and the transcript so far into one reply,
// including the decision whether to put the caller through. Generation
// failures never surface as errors: the caller always receives a speakable
// in-character line, degraded to canned locale content when every backend is
// down.
package gatekeeper

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kronitek/coldcall/internal/fallback"
	"github.com/kronitek/coldcall/internal/gatekeeper/namematch"
	"github.com/kronitek/coldcall/internal/observe"
	"github.com/kronitek/coldcall/pkg/provider/llm"
	"github.com/kronitek/coldcall/pkg/types"
)

const (
	turnTemperature = 0.8
	turnMaxTokens   = 512
)

// Reply is one generated gatekeeper turn.
type Reply struct {
	// Text is the spoken line, with any connection sentinel already stripped.
	Text string

	// Connected reports whether the gatekeeper decided to put the caller
	// through to the decision maker.
	Connected bool

	// Fallback is true when Text is canned locale content rather than a
	// generated reply.
	Fallback bool
}

// Responder generates gatekeeper turns on top of an [llm.Provider].
// Safe for concurrent use.
type Responder struct {
	provider llm.Provider
	names    *namematch.Detector
	log      *slog.Logger
}

// NewResponder creates a Responder. A nil logger defaults to slog.Default().
func NewResponder(provider llm.Provider, log *slog.Logger) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{
		provider: provider,
		names:    namematch.New(),
		log:      log,
	}
}

// Respond generates the gatekeeper's reply to the conversation so far.
// It never returns an error: when generation fails the reply carries the
// locale's fallback utterance with Connected=false and Fallback=true.
func (r *Responder) Respond(ctx context.Context, sc types.Scenario, turns []types.Turn, locale string) Reply {
	ctx, span := observe.StartSpan(ctx, "gatekeeper.respond", trace.WithAttributes(
		attribute.String("scenario", sc.ID),
		attribute.String("difficulty", string(sc.Difficulty)),
	))
	defer span.End()

	nameKnown := r.callerKnowsName(sc, turns)

	req := llm.CompletionRequest{
		SystemPrompt: systemInstruction(sc, locale, nameKnown),
		Messages:     historyMessages(turns),
		Temperature:  turnTemperature,
		MaxTokens:    turnMaxTokens,
	}

	resp, err := r.provider.Complete(ctx, req)
	if err != nil {
		r.log.Error("gatekeeper response generation failed",
			"scenario", sc.ID, "error", err)
		return Reply{
			Text:     fallback.Resolve(locale).Utterance,
			Fallback: true,
		}
	}

	text, connected := NormalizeReply(resp.Content)
	if text == "" {
		r.log.Warn("gatekeeper produced an empty reply", "scenario", sc.ID)
		return Reply{
			Text:     fallback.Resolve(locale).Utterance,
			Fallback: true,
		}
	}
	return Reply{Text: text, Connected: connected}
}

// Greeting generates the opening line the gatekeeper answers the call with.
// On failure it falls back to the locale's static greeting.
func (r *Responder) Greeting(ctx context.Context, sc types.Scenario, locale string) string {
	req := llm.CompletionRequest{
		SystemPrompt: greetingInstruction(sc, locale),
		Messages: []types.Message{
			{Role: "user", Content: "The phone rings. Answer it."},
		},
		Temperature: turnTemperature,
		MaxTokens:   128,
	}

	resp, err := r.provider.Complete(ctx, req)
	if err != nil {
		r.log.Warn("greeting generation failed, using static greeting",
			"scenario", sc.ID, "error", err)
		return fallback.Resolve(locale).Greeting
	}

	text, _ := NormalizeReply(resp.Content)
	if text == "" {
		return fallback.Resolve(locale).Greeting
	}
	return text
}

// AnnounceConnect returns the line the gatekeeper speaks when putting the
// caller through, naming the decision maker. Static content, no backend call.
func (r *Responder) AnnounceConnect(sc types.Scenario, locale string) string {
	return fallback.Resolve(locale).Announce(sc.DecisionMaker)
}

// callerKnowsName reports whether any user turn so far mentions the decision
// maker by name.
func (r *Responder) callerKnowsName(sc types.Scenario, turns []types.Turn) bool {
	for _, t := range turns {
		if t.Speaker != types.SpeakerUser {
			continue
		}
		if r.names.Mentioned(t.Text, sc.DecisionMaker) {
			return true
		}
	}
	return false
}

// historyMessages converts transcript turns into chat messages: user turns
// become user messages, gatekeeper turns become assistant messages.
func historyMessages(turns []types.Turn) []types.Message {
	msgs := make([]types.Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Speaker == types.SpeakerGatekeeper {
			role = "assistant"
		}
		msgs = append(msgs, types.Message{Role: role, Content: t.Text})
	}
	return msgs
}

// NormalizeReply strips markdown code fences and the connection sentinel from
// raw model output. It returns the speakable text and whether the sentinel
// was present. The sentinel is honoured at the start of the reply, including
// after fences or leading whitespace.
func NormalizeReply(raw string) (text string, connected bool) {
	text = UnwrapFences(strings.TrimSpace(raw))
	if strings.HasPrefix(text, connectToken) {
		connected = true
		text = strings.TrimSpace(strings.TrimPrefix(text, connectToken))
	}
	return text, connected
}

// UnwrapFences removes a surrounding markdown code fence, if present, along
// with any language tag on the opening fence. Text without fences is returned
// trimmed but otherwise unchanged.
func UnwrapFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	body := strings.TrimPrefix(s, "```")
	// Drop a language tag such as "json" directly after the opening fence.
	if idx := strings.IndexAny(body, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(body[:idx])
		if firstLine != "" && !strings.ContainsAny(firstLine, " \t{[") {
			body = body[idx+1:]
		}
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
