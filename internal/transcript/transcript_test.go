package transcript

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kronitek/coldcall/pkg/types"
)

func TestAppendAndSnapshot(t *testing.T) {
	s := New()

	s.Append(types.Turn{Speaker: types.SpeakerGatekeeper, Text: "Hello, this is the front desk."})
	s.Append(
		types.Turn{Speaker: types.SpeakerUser, Text: "Good morning, this is Dmitry from Kronitek."},
		types.Turn{Speaker: types.SpeakerGatekeeper, Text: "What is this regarding?"},
	)

	got := s.Turns()
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got))
	}
	if got[0].Speaker != types.SpeakerGatekeeper {
		t.Errorf("turn 0 speaker = %q, want gatekeeper", got[0].Speaker)
	}
	if got[1].Text != "Good morning, this is Dmitry from Kronitek." {
		t.Errorf("turn 1 text = %q", got[1].Text)
	}
	if got[2].At.IsZero() {
		t.Error("expected zero timestamps to be stamped on append")
	}
}

func TestAppendPreservesExplicitTimestamp(t *testing.T) {
	s := New()
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	s.Append(types.Turn{Speaker: types.SpeakerUser, Text: "hi", At: at})

	if got := s.Turns()[0].At; !got.Equal(at) {
		t.Errorf("At = %v, want %v", got, at)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Append(types.Turn{Speaker: types.SpeakerUser, Text: "original"})

	snap := s.Turns()
	snap[0].Text = "mutated"

	if got := s.Turns()[0].Text; got != "original" {
		t.Errorf("store was mutated through snapshot: %q", got)
	}
}

func TestUserTurnsAndLastUserText(t *testing.T) {
	s := New()
	if s.UserTurns() != 0 {
		t.Errorf("UserTurns on empty store = %d, want 0", s.UserTurns())
	}
	if s.LastUserText() != "" {
		t.Errorf("LastUserText on empty store = %q, want empty", s.LastUserText())
	}

	s.Append(
		types.Turn{Speaker: types.SpeakerGatekeeper, Text: "Hello?"},
		types.Turn{Speaker: types.SpeakerUser, Text: "first"},
		types.Turn{Speaker: types.SpeakerGatekeeper, Text: "Go on."},
		types.Turn{Speaker: types.SpeakerUser, Text: "second"},
	)

	if got := s.UserTurns(); got != 2 {
		t.Errorf("UserTurns = %d, want 2", got)
	}
	if got := s.LastUserText(); got != "second" {
		t.Errorf("LastUserText = %q, want %q", got, "second")
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.Append(types.Turn{Speaker: types.SpeakerUser, Text: "hi"})
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
}

// Appends are monotonic: concurrent appends never lose or reorder a writer's
// own atomic batch, and the log only ever grows.
func TestConcurrentAppendsMonotonic(t *testing.T) {
	s := New()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Append(types.Turn{
					Speaker: types.SpeakerUser,
					Text:    fmt.Sprintf("w%d-%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	if got := s.Len(); got != writers*perWriter {
		t.Fatalf("Len = %d, want %d", got, writers*perWriter)
	}
}
