package livecall

import (
	"errors"
	"sync"
	"time"

	"github.com/kronitek/coldcall/pkg/audio"
)

// ErrHalted is returned by [Scheduler.Play] after [Scheduler.Halt].
var ErrHalted = errors.New("livecall: playback halted")

// Clock abstracts the playback output clock so scheduling is testable without
// real time passing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// window is the occupied playback interval of one scheduled buffer.
type window struct {
	start, end time.Time
}

// Scheduler assigns gapless start times to synthesised audio buffers and
// forwards them to an output stream. Each buffer starts at the later of the
// current clock time and the previous buffer's end, so the playback timeline
// advances monotonically even when chunks arrive in bursts. Buffers whose
// playback interval has passed are released on the next Play or Pending call.
//
// Safe for concurrent use.
type Scheduler struct {
	clock Clock
	out   audio.OutputStream

	mu       sync.Mutex
	prevEnd  time.Time
	inFlight []window
	halted   bool
}

// NewScheduler creates a Scheduler writing to out. A nil clock selects the
// wall clock.
func NewScheduler(out audio.OutputStream, clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	return &Scheduler{clock: clock, out: out}
}

// Play schedules frame for playback and returns its assigned start time.
// Returns ErrHalted after Halt, or the output stream's write error.
func (s *Scheduler) Play(frame audio.AudioFrame) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return time.Time{}, ErrHalted
	}

	now := s.clock.Now()
	s.releaseLocked(now)

	start := now
	if s.prevEnd.After(start) {
		start = s.prevEnd
	}
	end := start.Add(frame.Duration())

	if err := s.out.Write(frame); err != nil {
		return time.Time{}, err
	}

	s.prevEnd = end
	s.inFlight = append(s.inFlight, window{start: start, end: end})
	return start, nil
}

// Pending reports how many scheduled buffers have not finished playing yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(s.clock.Now())
	return len(s.inFlight)
}

// Halt discards all in-flight buffers and rejects further scheduling.
// Safe to call more than once.
func (s *Scheduler) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = true
	s.inFlight = nil
	s.prevEnd = time.Time{}
}

// releaseLocked drops buffers whose playback interval has passed.
// Must be called with s.mu held.
func (s *Scheduler) releaseLocked(now time.Time) {
	kept := s.inFlight[:0]
	for _, w := range s.inFlight {
		if w.end.After(now) {
			kept = append(kept, w)
		}
	}
	s.inFlight = kept
}
