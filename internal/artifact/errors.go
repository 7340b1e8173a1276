package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every *FetchError.
	ErrFetch = errors.New("artifact fetch failed")

	// ErrBadStatus is wrapped when the registry answers with a non-200 status.
	ErrBadStatus = errors.New("unexpected HTTP status")
)

// FetchError reports a network or filesystem failure while installing one
// artifact of a voice. Installs are never retried.
type FetchError struct {
	Locale string
	Voice  string
	File   string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to install %s for %s/%s from %s: %v", e.File, e.Locale, e.Voice, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
