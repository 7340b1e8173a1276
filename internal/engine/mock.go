package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// MockCall records one Synthesize call on a Mock model.
type MockCall struct {
	Voice   string
	Text    string
	Speaker *int
}

// Mock is a deterministic Synthesizer that produces silence and records
// what it was asked to do. It is used by `--engine mock` and in tests.
type Mock struct {
	// BytesPerRune is the amount of PCM produced per input rune.
	BytesPerRune int
	// BlockSize is the size of the yielded blocks.
	BlockSize int
	// LoadErr, when set, fails every Load.
	LoadErr error

	mu    sync.Mutex
	loads []string
	calls []MockCall
	live  int
}

// NewMock returns a mock producing 20 bytes of silence per rune.
func NewMock() *Mock {
	return &Mock{BytesPerRune: 20, BlockSize: 64}
}

// Name implements Synthesizer.
func (m *Mock) Name() string { return "mock" }

// Fingerprint implements the optional fingerprint of Synthesizer.
func (m *Mock) Fingerprint() string {
	return fmt.Sprintf("mock bytes_per_rune=%d", m.BytesPerRune)
}

// Load implements Synthesizer.
func (m *Mock) Load(ctx context.Context, files ModelFiles) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.loads = append(m.loads, files.Voice)
	m.live++
	return &mockModel{parent: m, voice: files.Voice}, nil
}

// Loads returns the voices loaded so far, in order.
func (m *Mock) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

// Calls returns every Synthesize call so far, in order.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Live is the number of loaded models not yet closed.
func (m *Mock) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

type mockModel struct {
	parent *Mock
	voice  string
	closed bool
}

func (mm *mockModel) Synthesize(ctx context.Context, text string, speaker *int) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := mm.parent
	m.mu.Lock()
	defer m.mu.Unlock()
	if mm.closed {
		return nil, ErrModelClosed
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var sp *int
	if speaker != nil {
		id := *speaker
		sp = &id
	}
	m.calls = append(m.calls, MockCall{Voice: mm.voice, Text: text, Speaker: sp})

	n := utf8.RuneCountInString(text) * m.BytesPerRune
	return &silenceStream{remaining: n, block: m.BlockSize}, nil
}

func (mm *mockModel) Close() error {
	m := mm.parent
	m.mu.Lock()
	defer m.mu.Unlock()
	if !mm.closed {
		mm.closed = true
		m.live--
	}
	return nil
}

type silenceStream struct {
	remaining int
	block     int
}

func (s *silenceStream) Next() ([]byte, error) {
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	n := s.block
	if n <= 0 || n > s.remaining {
		n = s.remaining
	}
	s.remaining -= n
	return make([]byte, n), nil
}
