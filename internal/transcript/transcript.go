// Package transcript provides the append-only conversation log for a
// training session.
//
// The store is the single source of truth for what was said: the response
// generator reads it to build prompts, the feedback generator reads it to
// grade the call, and the live call layer flushes reconciled voice turns into
// it. Appends are atomic, so a user turn and the gatekeeper's reply (or a
// reply plus the connect announcement) land together or not at all.
package transcript

import (
	"sync"
	"time"

	"github.com/kronitek/coldcall/pkg/types"
)

// Store is an append-only, ordered log of conversation turns.
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	turns []types.Turn
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// Append adds the given turns to the end of the log as one atomic operation.
// Turns with a zero At timestamp are stamped with the current time. Existing
// turns are never modified or removed.
func (s *Store) Append(turns ...types.Turn) {
	if len(turns) == 0 {
		return
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range turns {
		if t.At.IsZero() {
			t.At = now
		}
		s.turns = append(s.turns, t)
	}
}

// Turns returns a snapshot copy of all turns in append order.
func (s *Store) Turns() []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// UserTurns returns the number of turns spoken by the user.
func (s *Store) UserTurns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.turns {
		if t.Speaker == types.SpeakerUser {
			n++
		}
	}
	return n
}

// LastUserText returns the text of the most recent user turn, or "" if the
// user has not spoken yet.
func (s *Store) LastUserText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Speaker == types.SpeakerUser {
			return s.turns[i].Text
		}
	}
	return ""
}

// Clear removes all turns. Only the session restart path calls this; within a
// running simulation the log is append-only.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}
