// Package live defines the Provider interface for real-time duplex voice backends.
//
// A live provider wraps a streaming voice AI service that accepts raw audio
// input and returns synthesised audio output in a single, stateful session,
// bypassing the separate STT → LLM → TTS pipeline entirely. Examples include
// the Gemini Live API and the OpenAI Realtime API.
//
// The central abstraction is SessionHandle: a bidirectional, multiplexed
// channel that carries audio and transcript events concurrently. Sessions are
// long-lived (seconds to minutes) and end either when the caller closes them
// or when the model signals that the gatekeeper has connected the call.
//
// All implementations must be safe for concurrent use.
package live

import "context"

// Source identifies who produced a transcript fragment.
type Source string

const (
	// SourceUser marks fragments recognised from the caller's speech.
	SourceUser Source = "user"
	// SourceGatekeeper marks fragments of the model's spoken response.
	SourceGatekeeper Source = "gatekeeper"
)

// TranscriptEvent is one incremental transcription fragment from the session.
// Fragments are partial: consumers accumulate them per source until an event
// with TurnComplete set arrives, which marks the end of a conversational turn
// for both sources.
type TranscriptEvent struct {
	// Source identifies the speaker this fragment belongs to. Events that only
	// carry a turn boundary have an empty Source and Text.
	Source Source

	// Text is the raw fragment text. May contain leading or trailing
	// whitespace; consumers trim when flushing a completed turn.
	Text string

	// TurnComplete signals that the model finished the current turn. Pending
	// fragments for both sources should be flushed.
	TurnComplete bool
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Voice is the provider-specific voice name for synthesised speech output.
	// Empty selects the provider's default.
	Voice string

	// Instructions is the system-level prompt that defines the gatekeeper's
	// persona, the company context, and the connect rules.
	Instructions string

	// Locale is the BCP 47 language tag the session should converse in
	// (e.g. "en-US", "ru-RU"). Providers that cannot pin a language ignore it.
	Locale string
}

// SessionHandle represents an open live voice session. It is an interface so
// that test code can supply mock implementations without a live connection.
//
// The session is the hot path of the voice call. Every method must return
// quickly; audio I/O is channel-based so the caller's audio loop never blocks
// on the network. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM audio chunk (16 kHz, s16le, mono) to the
	// provider. Returns an error if the session is closed or the provider
	// cannot accept the chunk.
	SendAudio(chunk []byte) error

	// Audio returns a read-only channel that emits raw PCM audio byte slices
	// (24 kHz, s16le, mono) as the model speaks. The channel is closed when
	// the session ends; call [SessionHandle.Err] afterwards to check whether
	// it ended cleanly. Consumers must drain this channel promptly to prevent
	// backpressure from stalling the provider's receive loop.
	Audio() <-chan []byte

	// Transcripts returns a read-only channel of TranscriptEvent values for
	// both the caller's recognised speech and the gatekeeper's responses.
	// Closed when the session ends.
	Transcripts() <-chan TranscriptEvent

	// Err returns the error that caused the Audio channel to close
	// prematurely, or nil if the session ended cleanly.
	Err() error

	// OnConnectCall registers a handler invoked when the model decides to put
	// the caller through to the decision maker. Only one handler can be active
	// at a time; calling OnConnectCall again replaces the previous handler.
	// Passing nil clears it. The handler may be called from the session's
	// internal receive goroutine and must not block.
	OnConnectCall(handler func())

	// Close terminates the session, releases all resources, and closes the
	// Audio and Transcripts channels. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Provider is the abstraction over any live duplex voice backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new live session with the given configuration.
	// The returned SessionHandle is ready to accept audio immediately.
	//
	// The caller owns the SessionHandle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
