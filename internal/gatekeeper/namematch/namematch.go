// Package namematch detects whether the trainee has mentioned the decision
// maker by name.
//
// Voice-transcribed speech regularly mangles proper names ("Ivan Petrovich"
// arriving as "Iwan Petrowitsch"), so an exact substring check is not enough.
// The detector combines three stages:
//
//  1. Exact case-insensitive substring match on the full name.
//  2. Phonetic candidate check: Double Metaphone codes of the spoken words
//     are compared against the codes of the name tokens, and a candidate is
//     confirmed with Jaro-Winkler similarity above the phonetic threshold.
//  3. Pure Jaro-Winkler fallback with a higher fuzzy threshold for spellings
//     that are close but not phonetically aligned.
//
// The detector gates what the gatekeeper persona is allowed to volunteer: a
// caller who already knows the name gets a different prompt than one fishing
// for it.
package namematch

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched name token to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the detector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.fuzzyThreshold = threshold
	}
}

// Detector decides whether free text mentions a person's name.
// All methods are safe for concurrent use; the Detector is read-only after
// construction.
type Detector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Detector] configured with the supplied options.
func New(opts ...Option) *Detector {
	d := &Detector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Mentioned reports whether text contains a mention of the given full name.
// The name may carry a role prefix separated by a comma ("Chief Engineer,
// Ivan Petrovich"); only the part after the last comma is matched.
func (d *Detector) Mentioned(text, name string) bool {
	nameTokens := NameTokens(name)
	if len(nameTokens) == 0 || strings.TrimSpace(text) == "" {
		return false
	}

	textLower := strings.ToLower(text)
	nameLower := strings.Join(nameTokens, " ")

	// Stage 1: exact substring.
	if strings.Contains(textLower, nameLower) {
		return true
	}

	textTokens := tokenize(textLower)
	if len(textTokens) == 0 {
		return false
	}

	nameCodes := codesForTokens(nameTokens)

	// Stages 2 and 3 run over n-grams the size of the name, so a two-word
	// name is compared against every two-word window of the spoken text.
	n := len(nameTokens)
	if n > len(textTokens) {
		n = len(textTokens)
	}
	for i := 0; i+n <= len(textTokens); i++ {
		window := textTokens[i : i+n]
		score := bestJWScore(window, nameTokens, strings.Join(window, " "), nameLower)

		if codesOverlap(codesForTokens(window), nameCodes) {
			if score >= d.phoneticThreshold {
				return true
			}
			continue
		}
		if score >= d.fuzzyThreshold {
			return true
		}
	}
	return false
}

// NameTokens extracts the lowercased name tokens from a decision-maker
// string, dropping any role prefix before the last comma and surrounding
// punctuation.
func NameTokens(name string) []string {
	if idx := strings.LastIndex(name, ","); idx >= 0 {
		name = name[idx+1:]
	}
	return tokenize(strings.ToLower(name))
}

// tokenize splits text into words, trimming punctuation from each token.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the window
// and the name using full-string, space-stripped, and best pairwise token
// comparisons.
func bestJWScore(windowTokens, nameTokens []string, windowFull, nameFull string) float64 {
	score := matchr.JaroWinkler(windowFull, nameFull, false)

	if len(windowTokens) > 1 || len(nameTokens) > 1 {
		concat1 := strings.Join(windowTokens, "")
		concat2 := strings.Join(nameTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, wt := range windowTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(wt, nt, false); s > score {
				score = s
			}
		}
	}

	return score
}
