// Package types defines the shared types used across all coldcall packages.
//
// These types form the lingua franca between providers, the session state
// machine, and the live-call pipeline. Each package defines its own domain
// types; cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Difficulty grades how hard a scenario's gatekeeper is to get past.
type Difficulty string

const (
	// DifficultyEasy gatekeepers connect the caller on a modest, polite,
	// clearly stated reason.
	DifficultyEasy Difficulty = "easy"

	// DifficultyMedium gatekeepers follow instructions strictly and demand a
	// compelling, specific reason before connecting.
	DifficultyMedium Difficulty = "medium"

	// DifficultyHard gatekeepers actively filter sales calls and may never
	// connect on a single exchange.
	DifficultyHard Difficulty = "hard"
)

// IsValid reports whether d is a recognised difficulty tier.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Scenario is an immutable training scenario descriptor. It is supplied by
// the scenario catalog and is read-only for the duration of a session.
type Scenario struct {
	// ID is the unique scenario identifier (e.g., "cold_call_factory").
	ID string `yaml:"id"`

	// Title is the human-readable scenario name.
	Title string `yaml:"title"`

	// Description explains the trainee's objective.
	Description string `yaml:"description"`

	// GatekeeperPersona is the free-text persona of the simulated secretary
	// or assistant screening the call.
	GatekeeperPersona string `yaml:"gatekeeper_persona"`

	// DecisionMaker is the name and title of the person the trainee is trying
	// to reach (e.g., "Chief Engineer, Ivan Petrovich").
	DecisionMaker string `yaml:"decision_maker"`

	// CompanyProfile describes the company the gatekeeper works for.
	CompanyProfile string `yaml:"company_profile"`

	// Difficulty calibrates how much persuasion a connect requires.
	Difficulty Difficulty `yaml:"difficulty"`
}

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	// SpeakerUser is the trainee placing the simulated call.
	SpeakerUser Speaker = "user"

	// SpeakerGatekeeper is the simulated persona screening the call.
	SpeakerGatekeeper Speaker = "gatekeeper"
)

// Turn is one utterance in a session transcript. Turns are never edited or
// deleted once recorded; the transcript only grows.
type Turn struct {
	// Speaker identifies who spoke.
	Speaker Speaker

	// Text is the utterance content.
	Text string

	// At is when the turn was recorded.
	At time.Time
}

// Feedback is the terminal evaluation artifact produced once per session.
// It is immutable after creation.
type Feedback struct {
	// Strengths lists what the trainee did well (2-3 points).
	Strengths []string `json:"strengths"`

	// Improvements lists specific, actionable advice (2-3 points).
	Improvements []string `json:"improvements"`

	// OverallScore is a 1-10 rating. 0 is reserved for "generation failed".
	OverallScore int `json:"overallScore"`

	// Summary is a brief overall assessment and key takeaway.
	Summary string `json:"summary"`
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
