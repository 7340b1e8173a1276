package sidecar

import (
	"errors"
	"fmt"
)

var (
	// ErrRead matches every *ReadError.
	ErrRead = errors.New("sidecar unreadable")

	// ErrSpeakerNotFound is returned by Lookup for names absent from
	// speaker_id_map.
	ErrSpeakerNotFound = errors.New("speaker not found")

	// ErrNoSampleRate is wrapped when audio.sample_rate is missing or not positive.
	ErrNoSampleRate = errors.New("no audio.sample_rate")
)

// ReadError reports a sidecar that is missing or malformed.
type ReadError struct {
	Locale string
	Voice  string
	Path   string
	Err    error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read sidecar %s for %s/%s: %v", e.Path, e.Locale, e.Voice, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRead) match any ReadError.
func (e *ReadError) Is(target error) bool {
	return target == ErrRead
}
