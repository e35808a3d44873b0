// Package session implements the training session state machine.
//
// A session moves through three phases: scenario selection, an in-progress
// simulation, and the feedback screen. The state machine owns the transcript
// and enforces the interaction rules: at most one outstanding generation
// request, a read-only transcript once the gatekeeper connects the call, and
// feedback only for a dialogue with at least one user turn. Connecting does
// not end the simulation by itself; the trainee ends it explicitly and the
// outcome flag is carried into feedback.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kronitek/coldcall/internal/coach"
	"github.com/kronitek/coldcall/internal/gatekeeper"
	"github.com/kronitek/coldcall/internal/observe"
	"github.com/kronitek/coldcall/internal/transcript"
	"github.com/kronitek/coldcall/pkg/types"
)

// Phase is the top-level state of a session.
type Phase string

const (
	// PhaseScenarioSelection is the initial phase: no scenario chosen yet.
	PhaseScenarioSelection Phase = "scenario_selection"

	// PhaseInProgress is the running simulation.
	PhaseInProgress Phase = "in_progress"

	// PhaseFeedback is the terminal phase showing the evaluation.
	PhaseFeedback Phase = "feedback"
)

// Guard errors returned by session operations.
var (
	// ErrNotInProgress is returned when an operation requires a running
	// simulation.
	ErrNotInProgress = errors.New("session: no simulation in progress")

	// ErrReplyPending is returned when a generation request is already in
	// flight.
	ErrReplyPending = errors.New("session: a reply is already being generated")

	// ErrCallConnected is returned when the transcript is read-only because
	// the gatekeeper has connected the call.
	ErrCallConnected = errors.New("session: call already connected; end the simulation or restart")

	// ErrEmptyTurn is returned for blank user input.
	ErrEmptyTurn = errors.New("session: turn text is empty")

	// ErrTooShort is returned by EndSimulation when the dialogue is too short
	// to grade.
	ErrTooShort = errors.New("session: dialogue too short to evaluate")

	// ErrFeedbackPending is returned when feedback generation is already in
	// flight.
	ErrFeedbackPending = errors.New("session: feedback is already being generated")
)

// Snapshot is a consistent read-only view of the session for a UI layer.
type Snapshot struct {
	ID              uuid.UUID
	Phase           Phase
	Scenario        types.Scenario
	Turns           []types.Turn
	AwaitingReply   bool
	FeedbackLoading bool
	Connected       bool
	Feedback        *types.Feedback
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithLocale sets the session locale. Default: "en-US".
func WithLocale(locale string) Option {
	return func(s *Session) { s.locale = locale }
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is the state machine for one trainee. All methods are safe for
// concurrent use; generation calls block the caller but never other readers.
type Session struct {
	id        uuid.UUID
	responder *gatekeeper.Responder
	coach     *coach.Coach
	locale    string
	log       *slog.Logger
	metrics   *observe.Metrics

	mu              sync.Mutex
	phase           Phase
	scenario        types.Scenario
	transcript      *transcript.Store
	awaitingReply   bool
	greetingPending bool
	feedbackLoading bool
	connected       bool
	feedback        *types.Feedback

	// epoch increments on every SelectScenario and Restart. In-flight
	// generation goroutines carry the epoch they started under and discard
	// their result when it no longer matches, so a restarted simulation can
	// never receive a turn from a discarded one, even when the same scenario
	// is re-selected.
	epoch uint64
}

// New creates a Session in the scenario selection phase.
func New(responder *gatekeeper.Responder, c *coach.Coach, opts ...Option) *Session {
	s := &Session{
		id:         uuid.New(),
		responder:  responder,
		coach:      c,
		locale:     "en-US",
		log:        slog.Default(),
		phase:      PhaseScenarioSelection,
		transcript: transcript.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// SelectScenario starts a simulation for the given scenario. Any previous
// state is discarded. The gatekeeper's greeting is generated asynchronously
// so entering the simulation never blocks; until it lands, the transcript is
// empty and submissions are rejected with [ErrReplyPending], which keeps the
// greeting the first transcript turn. The returned channel closes when the
// greeting turn has been appended.
func (s *Session) SelectScenario(ctx context.Context, sc types.Scenario) <-chan struct{} {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	wasRunning := s.phase == PhaseInProgress
	s.scenario = sc
	s.phase = PhaseInProgress
	s.transcript.Clear()
	s.awaitingReply = false
	s.greetingPending = true
	s.feedbackLoading = false
	s.connected = false
	s.feedback = nil
	done := make(chan struct{})
	s.mu.Unlock()

	if !wasRunning {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}
	s.log.Info("scenario selected",
		"session", s.id, "scenario", sc.ID, "difficulty", sc.Difficulty)

	go func() {
		defer close(done)
		text := s.responder.Greeting(ctx, sc, s.locale)

		s.mu.Lock()
		defer s.mu.Unlock()
		// A restart or re-selection may have superseded this greeting.
		if s.epoch != epoch || s.phase != PhaseInProgress {
			return
		}
		s.greetingPending = false
		s.transcript.Append(types.Turn{Speaker: types.SpeakerGatekeeper, Text: text})
	}()

	return done
}

// SubmitUserTurn records the trainee's line and generates the gatekeeper's
// reply. The user turn is appended before generation starts and stays in the
// transcript even if generation degrades to a fallback. When the gatekeeper
// decides to connect, the reply and the success announcement are appended
// atomically and the transcript becomes read-only until Restart.
func (s *Session) SubmitUserTurn(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTurn
	}

	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return ErrNotInProgress
	}
	if s.connected {
		s.mu.Unlock()
		return ErrCallConnected
	}
	// The in-flight greeting counts as the outstanding request: admitting a
	// turn before it lands would run two generations at once and let the
	// greeting slot in behind the user's opening line.
	if s.awaitingReply || s.greetingPending {
		s.mu.Unlock()
		return ErrReplyPending
	}
	s.awaitingReply = true
	s.transcript.Append(types.Turn{Speaker: types.SpeakerUser, Text: text})
	sc := s.scenario
	epoch := s.epoch
	turns := s.transcript.Turns()
	s.mu.Unlock()

	start := time.Now()
	reply := s.responder.Respond(ctx, sc, turns, s.locale)
	s.metrics.RecordTurn(ctx, string(sc.Difficulty), time.Since(start).Seconds(), reply.Fallback)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaitingReply = false

	// Restart or re-selection may have fired while the request was in
	// flight; the reply belongs to a discarded simulation then.
	if s.phase != PhaseInProgress || s.epoch != epoch {
		return nil
	}

	if reply.Connected {
		s.transcript.Append(
			types.Turn{Speaker: types.SpeakerGatekeeper, Text: reply.Text},
			types.Turn{Speaker: types.SpeakerGatekeeper, Text: s.responder.AnnounceConnect(sc, s.locale)},
		)
		s.connected = true
		s.log.Info("gatekeeper connected the call",
			"session", s.id, "scenario", sc.ID)
		return nil
	}

	s.transcript.Append(types.Turn{Speaker: types.SpeakerGatekeeper, Text: reply.Text})
	return nil
}

// MarkConnected flags the session as connected without a generated reply.
// The live call path uses this when the voice model signals the transfer
// directly. Appends the success announcement unless one was already added.
func (s *Session) MarkConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInProgress || s.connected {
		return
	}
	s.connected = true
	s.transcript.Append(types.Turn{
		Speaker: types.SpeakerGatekeeper,
		Text:    s.responder.AnnounceConnect(s.scenario, s.locale),
	})
}

// AppendTurns adds externally produced turns (reconciled voice transcript
// fragments) to the running simulation.
func (s *Session) AppendTurns(turns ...types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	s.transcript.Append(turns...)
	return nil
}

// EndSimulation finishes the simulation and generates feedback. The guard
// requires at least two turns overall and at least one user turn. The call
// blocks until feedback is ready; exactly one evaluation can be outstanding.
// The success outcome is the session's connected flag.
func (s *Session) EndSimulation(ctx context.Context) (types.Feedback, error) {
	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return types.Feedback{}, ErrNotInProgress
	}
	if s.feedbackLoading {
		s.mu.Unlock()
		return types.Feedback{}, ErrFeedbackPending
	}
	if s.awaitingReply || s.greetingPending {
		s.mu.Unlock()
		return types.Feedback{}, ErrReplyPending
	}
	if s.transcript.Len() < 2 || s.transcript.UserTurns() < 1 {
		s.mu.Unlock()
		return types.Feedback{}, ErrTooShort
	}
	s.feedbackLoading = true
	sc := s.scenario
	epoch := s.epoch
	turns := s.transcript.Turns()
	success := s.connected
	s.mu.Unlock()

	start := time.Now()
	fb := s.coach.Evaluate(ctx, sc, turns, success, s.locale)
	s.metrics.RecordFeedback(ctx, time.Since(start).Seconds(), fb.OverallScore == 0)
	s.metrics.RecordConnectOutcome(ctx, string(sc.Difficulty), success)

	s.mu.Lock()
	s.feedbackLoading = false
	if s.phase != PhaseInProgress || s.epoch != epoch {
		// Restarted or re-selected mid-evaluation; drop the result.
		s.mu.Unlock()
		return types.Feedback{}, ErrNotInProgress
	}
	s.phase = PhaseFeedback
	s.feedback = &fb
	s.mu.Unlock()

	s.metrics.ActiveSessions.Add(ctx, -1)
	s.log.Info("simulation ended",
		"session", s.id, "scenario", sc.ID,
		"connected", success, "score", fb.OverallScore)
	return fb, nil
}

// Restart returns the session to scenario selection from any phase, clearing
// the transcript, flags, and feedback.
func (s *Session) Restart() {
	s.mu.Lock()
	s.epoch++
	wasRunning := s.phase == PhaseInProgress
	s.phase = PhaseScenarioSelection
	s.scenario = types.Scenario{}
	s.transcript.Clear()
	s.awaitingReply = false
	s.greetingPending = false
	s.feedbackLoading = false
	s.connected = false
	s.feedback = nil
	s.mu.Unlock()

	if wasRunning {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	s.log.Info("session restarted", "session", s.id)
}

// Snapshot returns a consistent view of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fb *types.Feedback
	if s.feedback != nil {
		cp := *s.feedback
		fb = &cp
	}
	return Snapshot{
		ID:              s.id,
		Phase:           s.phase,
		Scenario:        s.scenario,
		Turns:           s.transcript.Turns(),
		AwaitingReply:   s.awaitingReply,
		FeedbackLoading: s.feedbackLoading,
		Connected:       s.connected,
		Feedback:        fb,
	}
}

// Locale returns the session locale.
func (s *Session) Locale() string { return s.locale }

// Scenario returns the active scenario. Zero value outside a simulation.
func (s *Session) Scenario() types.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

// Connected reports whether the gatekeeper has connected the call.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
