// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions.
// Use Session to drive the bidirectional audio/transcript streams and inspect
// which methods were invoked by the call orchestrator.
//
// Example:
//
//	sess := &mock.Session{
//	    AudioCh:       make(chan []byte, 8),
//	    TranscriptsCh: make(chan live.TranscriptEvent, 4),
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/kronitek/coldcall/pkg/provider/live"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect returns
	// a new default Session with buffered channels.
	Session live.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectErrs, if non-empty, is consumed one entry per Connect call before
	// ConnectErr is consulted. Nil entries mean success. Useful for testing
	// retry behaviour.
	ConnectErrs []error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session or a scripted error.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})

	if len(p.ConnectErrs) > 0 {
		err := p.ConnectErrs[0]
		p.ConnectErrs = p.ConnectErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}

	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{
		AudioCh:       make(chan []byte, 64),
		TranscriptsCh: make(chan live.TranscriptEvent, 16),
	}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements live.Provider at compile time.
var _ live.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of live.SessionHandle.
// Callers should pre-populate AudioCh and TranscriptsCh, then close them to
// signal end-of-session.
type Session struct {
	mu sync.Mutex

	// AudioCh is the channel returned by Audio(). Callers own this channel.
	AudioCh chan []byte

	// TranscriptsCh is the channel returned by Transcripts(). Callers own this
	// channel.
	TranscriptsCh chan live.TranscriptEvent

	// connectHandler is the currently registered connect callback.
	connectHandler func()

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SessionErr is returned by Err.
	SessionErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// OnConnectCallSetCount is the number of times OnConnectCall was called.
	OnConnectCallSetCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Audio returns AudioCh.
func (s *Session) Audio() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioCh
}

// Transcripts returns TranscriptsCh.
func (s *Session) Transcripts() <-chan live.TranscriptEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TranscriptsCh
}

// Err returns SessionErr.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SessionErr
}

// OnConnectCall stores the handler and increments OnConnectCallSetCount.
func (s *Session) OnConnectCall(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectHandler = handler
	s.OnConnectCallSetCount++
}

// TriggerConnect invokes the registered connect handler, simulating the model
// deciding to put the caller through. No-op if no handler is registered.
func (s *Session) TriggerConnect() {
	s.mu.Lock()
	handler := s.connectHandler
	s.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// CloseCount returns the number of Close calls so far. Thread-safe.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// SentAudio returns copies of all chunks passed to SendAudio. Thread-safe.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.SendAudioCalls))
	for i, c := range s.SendAudioCalls {
		out[i] = c.Chunk
	}
	return out
}

// Ensure Session implements live.SessionHandle at compile time.
var _ live.SessionHandle = (*Session)(nil)
