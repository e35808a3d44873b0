package fallback

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kronitek/coldcall/pkg/types"
)

// BaseLocale is the locale every unknown tag resolves to.
const BaseLocale = "en-US"

// Content is the canned per-locale material used when generation fails or
// when a static line is needed without a round trip to a backend.
type Content struct {
	// Locale is the BCP 47 tag this content is written in.
	Locale string

	// Greeting is the static opening line spoken by the gatekeeper when the
	// generated greeting is unavailable.
	Greeting string

	// Utterance is the in-character line used in place of a failed turn
	// response.
	Utterance string

	// AnnounceTemplate is a fmt template with one %s verb for the decision
	// maker's name, spoken when the gatekeeper puts the call through.
	AnnounceTemplate string

	// Feedback is the canned post-call feedback used when feedback generation
	// fails. Its OverallScore is always 0, which marks it as a placeholder
	// rather than a real grade.
	Feedback types.Feedback
}

// Announce renders the success announcement for the given decision maker.
func (c Content) Announce(decisionMaker string) string {
	return fmt.Sprintf(c.AnnounceTemplate, decisionMaker)
}

// catalog holds the shipped locales keyed by exact tag.
var catalog = map[string]Content{
	"en-US": {
		Locale:           "en-US",
		Greeting:         "Hello, this is the front desk. How can I help you?",
		Utterance:        "Sorry, I'm experiencing a technical issue. Please try again.",
		AnnounceTemplate: "One moment please, I'm putting you through to %s.",
		Feedback: types.Feedback{
			Strengths:    []string{"You completed the conversation."},
			Improvements: []string{"Feedback could not be generated for this session. Please try again."},
			OverallScore: 0,
			Summary:      "Automatic feedback is temporarily unavailable.",
		},
	},
	"de-DE": {
		Locale:           "de-DE",
		Greeting:         "Guten Tag, hier ist der Empfang. Wie kann ich Ihnen helfen?",
		Utterance:        "Entschuldigung, es gibt gerade ein technisches Problem. Bitte versuchen Sie es erneut.",
		AnnounceTemplate: "Einen Moment bitte, ich verbinde Sie mit %s.",
		Feedback: types.Feedback{
			Strengths:    []string{"Sie haben das Gespräch abgeschlossen."},
			Improvements: []string{"Für diese Sitzung konnte kein Feedback erstellt werden. Bitte versuchen Sie es erneut."},
			OverallScore: 0,
			Summary:      "Automatisches Feedback ist vorübergehend nicht verfügbar.",
		},
	},
	"ru-RU": {
		Locale:           "ru-RU",
		Greeting:         "Здравствуйте, это приёмная. Чем могу помочь?",
		Utterance:        "Извините, возникла техническая проблема. Пожалуйста, попробуйте ещё раз.",
		AnnounceTemplate: "Минуту, соединяю вас с %s.",
		Feedback: types.Feedback{
			Strengths:    []string{"Вы завершили разговор."},
			Improvements: []string{"Не удалось сформировать отзыв для этой сессии. Пожалуйста, попробуйте ещё раз."},
			OverallScore: 0,
			Summary:      "Автоматический отзыв временно недоступен.",
		},
	},
}

// Resolve returns the canned content for the given locale tag. Lookup is
// case-insensitive: first an exact tag match, then any shipped locale with
// the same language prefix, then [BaseLocale]. Resolve never fails, so the
// degradation ladder always terminates in usable content.
func Resolve(locale string) Content {
	tag := normalizeTag(locale)
	if c, ok := catalog[tag]; ok {
		return c
	}

	// Sorted tags keep sibling-locale resolution deterministic when several
	// shipped locales share a language.
	if lang, _, ok := strings.Cut(tag, "-"); ok || lang != "" {
		for _, t := range slices.Sorted(maps.Keys(catalog)) {
			if strings.HasPrefix(t, lang+"-") {
				return catalog[t]
			}
		}
	}

	return catalog[BaseLocale]
}

// Locales returns the tags of all shipped locales in sorted order.
func Locales() []string {
	return slices.Sorted(maps.Keys(catalog))
}

// normalizeTag lowercases the language and uppercases the region so that
// "EN-us" and "en-US" resolve identically.
func normalizeTag(locale string) string {
	lang, region, ok := strings.Cut(strings.TrimSpace(locale), "-")
	if !ok {
		return strings.ToLower(lang)
	}
	return strings.ToLower(lang) + "-" + strings.ToUpper(region)
}
