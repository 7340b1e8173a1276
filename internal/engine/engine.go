// Package engine is the boundary to the neural synthesizer. A Synthesizer
// loads a voice model; the loaded Model turns text into a lazy Stream of raw
// 16-bit mono PCM blocks.
package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
)

var (
	// ErrEmptyText is returned when asked to synthesize nothing.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrModelClosed is returned by a Model used after Close.
	ErrModelClosed = errors.New("model is closed")
)

// ModelFiles locates an installed voice.
type ModelFiles struct {
	Voice  string
	Model  string
	Config string
}

// Synthesizer loads voice models.
type Synthesizer interface {
	Name() string
	Load(ctx context.Context, files ModelFiles) (Model, error)
}

// Model is one loaded voice. A nil speaker selects the model's default.
type Model interface {
	Synthesize(ctx context.Context, text string, speaker *int) (Stream, error)
	Close() error
}

// Stream yields PCM blocks until io.EOF. It cannot be restarted.
type Stream interface {
	Next() ([]byte, error)
}

// Fingerprint identifies s together with the settings that change its
// output. Synthesizers without a Fingerprint method are known by Name.
func Fingerprint(s Synthesizer) string {
	if s == nil {
		return ""
	}
	if f, ok := s.(interface{ Fingerprint() string }); ok {
		return f.Fingerprint()
	}
	return s.Name()
}

// Drain concatenates every block of s in the order they are yielded.
func Drain(s Stream) ([]byte, error) {
	var buf bytes.Buffer
	for {
		block, err := s.Next()
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(block)
	}
}
