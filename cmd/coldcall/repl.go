package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kronitek/coldcall/internal/livecall"
	"github.com/kronitek/coldcall/internal/scenario"
	"github.com/kronitek/coldcall/internal/session"
	"github.com/kronitek/coldcall/pkg/audio"
	"github.com/kronitek/coldcall/pkg/provider/live"
	"github.com/kronitek/coldcall/pkg/types"
)

// repl drives one training session over a line-based terminal.
type repl struct {
	sess       *session.Session
	catalog    *scenario.Catalog
	liveProv   live.Provider
	device     audio.Device
	voice      string
	captureFmt audio.Format
	out        io.Writer
	in         io.Reader
}

// run reads commands until the input ends, the context is cancelled, or the
// trainee quits.
func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	r.printScenarios()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		switch r.sess.Snapshot().Phase {
		case session.PhaseScenarioSelection:
			r.handleSelection(ctx, line)
		case session.PhaseInProgress:
			r.handleTurn(ctx, scanner, line)
		case session.PhaseFeedback:
			r.handleFeedbackPhase(line)
		}
	}
}

func (r *repl) printScenarios() {
	fmt.Fprintln(r.out, "Pick a scenario:")
	for i, sc := range r.catalog.All() {
		fmt.Fprintf(r.out, "  %d. %s [%s]\n", i+1, sc.Title, sc.Difficulty)
		if sc.Description != "" {
			fmt.Fprintf(r.out, "     %s\n", sc.Description)
		}
	}
	fmt.Fprintln(r.out, "Enter a number to start. During the call: /call for voice, /end for feedback, /restart, /quit.")
}

func (r *repl) handleSelection(ctx context.Context, line string) {
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 1 || idx > r.catalog.Len() {
		fmt.Fprintf(r.out, "Enter a number between 1 and %d.\n", r.catalog.Len())
		return
	}
	sc := r.catalog.All()[idx-1]

	before := len(r.sess.Snapshot().Turns)
	select {
	case <-r.sess.SelectScenario(ctx, sc):
	case <-ctx.Done():
		return
	}
	r.printNewTurns(before)
}

func (r *repl) handleTurn(ctx context.Context, scanner *bufio.Scanner, line string) {
	switch line {
	case "/restart":
		r.sess.Restart()
		r.printScenarios()
		return
	case "/end":
		r.endSimulation(ctx)
		return
	case "/call":
		r.liveCall(ctx, scanner)
		return
	}

	before := len(r.sess.Snapshot().Turns)
	if err := r.sess.SubmitUserTurn(ctx, line); err != nil {
		r.printSessionError(err)
		return
	}
	// Skip echoing the trainee's own turn back.
	r.printNewTurnsFiltered(before, types.SpeakerGatekeeper)
}

func (r *repl) endSimulation(ctx context.Context) {
	fb, err := r.sess.EndSimulation(ctx)
	if err != nil {
		r.printSessionError(err)
		return
	}
	r.printFeedback(fb)
	fmt.Fprintln(r.out, "/restart begins a new simulation, /quit exits.")
}

func (r *repl) handleFeedbackPhase(line string) {
	if line == "/restart" {
		r.sess.Restart()
		r.printScenarios()
		return
	}
	fmt.Fprintln(r.out, "The simulation is over. /restart begins a new one, /quit exits.")
}

// liveCall switches the conversation to voice until the trainee hangs up, the
// backend ends the call, or the gatekeeper puts the call through.
func (r *repl) liveCall(ctx context.Context, scanner *bufio.Scanner) {
	if r.liveProv == nil {
		fmt.Fprintln(r.out, "No live voice provider is configured.")
		return
	}

	before := len(r.sess.Snapshot().Turns)
	call := livecall.New(r.liveProv, r.device, r.sess,
		livecall.WithVoice(r.voice),
		livecall.WithCaptureFormat(r.captureFmt),
	)
	if err := call.Start(ctx); err != nil {
		fmt.Fprintln(r.out, livecall.UserMessage(err))
		return
	}

	fmt.Fprintln(r.out, "Live call running. Press Enter to hang up.")
	lineCh := make(chan struct{})
	go func() {
		scanner.Scan()
		close(lineCh)
	}()

	select {
	case <-call.Done():
	case <-lineCh:
	case <-ctx.Done():
	}

	if err := call.Stop(); err != nil {
		fmt.Fprintln(r.out, livecall.UserMessage(err))
	}
	r.printNewTurns(before)

	if r.sess.Connected() {
		fmt.Fprintln(r.out, "You were put through. /end for feedback.")
	}
}

// printNewTurns prints every transcript turn appended since position from.
func (r *repl) printNewTurns(from int) {
	r.printNewTurnsFiltered(from, "")
}

func (r *repl) printNewTurnsFiltered(from int, only types.Speaker) {
	turns := r.sess.Snapshot().Turns
	for _, turn := range turns[min(from, len(turns)):] {
		if only != "" && turn.Speaker != only {
			continue
		}
		label := "You"
		if turn.Speaker == types.SpeakerGatekeeper {
			label = "Gatekeeper"
		}
		fmt.Fprintf(r.out, "%s: %s\n", label, turn.Text)
	}
}

func (r *repl) printFeedback(fb types.Feedback) {
	fmt.Fprintf(r.out, "\nScore: %d/10\n", fb.OverallScore)
	if len(fb.Strengths) > 0 {
		fmt.Fprintln(r.out, "Strengths:")
		for _, s := range fb.Strengths {
			fmt.Fprintf(r.out, "  + %s\n", s)
		}
	}
	if len(fb.Improvements) > 0 {
		fmt.Fprintln(r.out, "Improvements:")
		for _, s := range fb.Improvements {
			fmt.Fprintf(r.out, "  - %s\n", s)
		}
	}
	if fb.Summary != "" {
		fmt.Fprintf(r.out, "Summary: %s\n\n", fb.Summary)
	}
}

func (r *repl) printSessionError(err error) {
	switch {
	case errors.Is(err, session.ErrCallConnected):
		fmt.Fprintln(r.out, "You are already being put through. /end for feedback or /restart to try again.")
	case errors.Is(err, session.ErrTooShort):
		fmt.Fprintln(r.out, "Say something to the gatekeeper before asking for feedback.")
	case errors.Is(err, session.ErrReplyPending):
		fmt.Fprintln(r.out, "Wait for the gatekeeper to answer.")
	case errors.Is(err, session.ErrFeedbackPending):
		fmt.Fprintln(r.out, "Feedback is already being generated.")
	case errors.Is(err, session.ErrEmptyTurn):
		fmt.Fprintln(r.out, "Type a message first.")
	default:
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
}
