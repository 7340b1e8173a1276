package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLocale is returned when a locale has no voices in the catalog.
	ErrUnknownLocale = errors.New("unknown locale")

	// ErrUnknownVoice is returned when a voice is not listed for a locale.
	ErrUnknownVoice = errors.New("unknown voice")
)

// LookupError reports a (locale, voice) pair that is absent from the catalog.
// It is always fatal to the call that triggered it.
type LookupError struct {
	Locale string
	Voice  string

	// Suggestions holds close matches for the requested name, best first.
	Suggestions []string

	err error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	var msg string
	if errors.Is(e.err, ErrUnknownLocale) {
		msg = fmt.Sprintf("%s %q", e.err, e.Locale)
	} else {
		msg = fmt.Sprintf("%s %q for locale %q", e.err, e.Voice, e.Locale)
	}
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

// Unwrap returns ErrUnknownLocale or ErrUnknownVoice.
func (e *LookupError) Unwrap() error {
	return e.err
}
