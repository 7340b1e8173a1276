package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"
)

// DefaultBlockSize is the size of the PCM blocks read from piper's stdout.
const DefaultBlockSize = 4096

// PiperOptions configures the piper command line.
type PiperOptions struct {
	// Binary is the piper executable, looked up in PATH when not absolute.
	Binary string

	LengthScale     float64
	NoiseScale      float64
	NoiseW          float64
	SentenceSilence float64

	// BlockSize overrides DefaultBlockSize.
	BlockSize int

	Logger *log.Logger
}

// Piper runs the piper binary once per phrase.
type Piper struct {
	opts PiperOptions
}

// NewPiper returns a Synthesizer backed by the piper CLI.
func NewPiper(opts PiperOptions) *Piper {
	if opts.Binary == "" {
		opts.Binary = "piper"
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("piper")
	}
	return &Piper{opts: opts}
}

// Name implements Synthesizer.
func (p *Piper) Name() string { return "piper" }

// Fingerprint covers the binary and every flag that shapes the audio.
func (p *Piper) Fingerprint() string {
	return fmt.Sprintf("piper bin=%s length=%g noise=%g noise_w=%g silence=%g",
		p.opts.Binary, p.opts.LengthScale, p.opts.NoiseScale, p.opts.NoiseW, p.opts.SentenceSilence)
}

// Load checks that piper and the model files are usable. The model itself
// is read by piper on every synthesis.
func (p *Piper) Load(ctx context.Context, files ModelFiles) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bin, err := exec.LookPath(p.opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("piper not found: %w", err)
	}
	for _, path := range []string{files.Model, files.Config} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model file not accessible: %w", err)
		}
	}

	p.opts.Logger.Debug("Loaded model", "voice", files.Voice, "model", files.Model)
	return &piperModel{bin: bin, files: files, opts: p.opts}, nil
}

type piperModel struct {
	bin   string
	files ModelFiles
	opts  PiperOptions

	mu     sync.Mutex
	closed bool
}

func (m *piperModel) args(speaker *int) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	args := []string{
		"--model", m.files.Model,
		"--config", m.files.Config,
		"--output-raw",
	}
	if speaker != nil {
		args = append(args, "--speaker", strconv.Itoa(*speaker))
	}
	if m.opts.LengthScale > 0 {
		args = append(args, "--length-scale", f(m.opts.LengthScale))
	}
	if m.opts.NoiseScale > 0 {
		args = append(args, "--noise-scale", f(m.opts.NoiseScale))
	}
	if m.opts.NoiseW > 0 {
		args = append(args, "--noise-w", f(m.opts.NoiseW))
	}
	if m.opts.SentenceSilence > 0 {
		args = append(args, "--sentence-silence", f(m.opts.SentenceSilence))
	}
	return args
}

// Synthesize starts piper with the text already wired to stdin, so piper
// never blocks waiting for input we have not written yet.
func (m *piperModel) Synthesize(ctx context.Context, text string, speaker *int) (Stream, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrModelClosed
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	cmd := exec.CommandContext(ctx, m.bin, m.args(speaker)...)
	cmd.Stdin = strings.NewReader(text)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open piper stdout: %w", err)
	}
	s := &processStream{cmd: cmd, stdout: stdout, blockSize: m.opts.BlockSize}
	cmd.Stderr = &s.stderr

	m.opts.Logger.Debug("Synthesizing",
		"voice", m.files.Voice,
		"text", runewidth.Truncate(text, 40, "…"),
		"speaker", speakerLabel(speaker))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start piper: %w", err)
	}
	return s, nil
}

func speakerLabel(speaker *int) string {
	if speaker == nil {
		return "default"
	}
	return strconv.Itoa(*speaker)
}

func (m *piperModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// processStream reads a running piper process' stdout in fixed-size blocks.
type processStream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    bytes.Buffer
	blockSize int

	done bool
	err  error
}

func (s *processStream) Next() ([]byte, error) {
	if s.done {
		return nil, s.err
	}

	buf := make([]byte, s.blockSize)
	n, err := io.ReadFull(s.stdout, buf)
	if err == nil {
		return buf, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	s.finish(err)

	if n > 0 && errors.Is(s.err, io.EOF) {
		return buf[:n], nil
	}
	return nil, s.err
}

func (s *processStream) finish(readErr error) {
	s.done = true

	waitErr := s.cmd.Wait()
	switch {
	case readErr != nil:
		s.err = fmt.Errorf("failed to read piper output: %w", readErr)
	case waitErr != nil:
		s.err = fmt.Errorf("piper failed: %w, stderr: %s", waitErr, strings.TrimSpace(s.stderr.String()))
	default:
		s.err = io.EOF
	}
}
