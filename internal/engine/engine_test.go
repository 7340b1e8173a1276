package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

type sliceStream struct {
	blocks [][]byte
	err    error
}

func (s *sliceStream) Next() ([]byte, error) {
	if len(s.blocks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	return b, nil
}

func TestDrain(t *testing.T) {
	s := &sliceStream{blocks: [][]byte{{1, 2}, {}, {3}, {4, 5, 6}}}
	got, err := Drain(s)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Drain = % x", got)
	}

	// A drained stream stays finished.
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after drain = %v, want io.EOF", err)
	}
}

func TestDrain_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := Drain(&sliceStream{blocks: [][]byte{{1}}, err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Drain error = %v, want boom", err)
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	model, err := m.Load(ctx, ModelFiles{Voice: "arctic"})
	if err != nil {
		t.Fatal(err)
	}

	speaker := 3
	s, err := model.Synthesize(ctx, "héllo", &speaker)
	if err != nil {
		t.Fatal(err)
	}
	speaker = 4 // must not leak into the recorded call

	pcm, err := Drain(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) != 5*m.BytesPerRune {
		t.Errorf("len(pcm) = %d, want %d", len(pcm), 5*m.BytesPerRune)
	}

	calls := m.Calls()
	if len(calls) != 1 || calls[0].Voice != "arctic" || *calls[0].Speaker != 3 {
		t.Errorf("unexpected calls: %+v", calls)
	}

	if _, err := model.Synthesize(ctx, "  ", nil); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text = %v, want ErrEmptyText", err)
	}

	if m.Live() != 1 {
		t.Errorf("Live = %d, want 1", m.Live())
	}
	_ = model.Close()
	_ = model.Close()
	if m.Live() != 0 {
		t.Errorf("Live after close = %d, want 0", m.Live())
	}
	if _, err := model.Synthesize(ctx, "again", nil); !errors.Is(err, ErrModelClosed) {
		t.Errorf("closed model = %v, want ErrModelClosed", err)
	}
}

// fakePiper writes a shell script that echoes its arguments on the first
// line and then copies stdin to stdout.
func fakePiper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "piper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func modelFiles(t *testing.T) ModelFiles {
	t.Helper()
	dir := t.TempDir()
	files := ModelFiles{
		Voice:  "test",
		Model:  filepath.Join(dir, "test.onnx"),
		Config: filepath.Join(dir, "test.onnx.json"),
	}
	for _, p := range []string{files.Model, files.Config} {
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return files
}

func TestPiper_Synthesize(t *testing.T) {
	bin := fakePiper(t, `echo "$@"; cat`)
	p := NewPiper(PiperOptions{
		Binary:      bin,
		LengthScale: 1.5,
		BlockSize:   8,
		Logger:      log.New(io.Discard),
	})

	files := modelFiles(t)
	model, err := p.Load(context.Background(), files)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer model.Close()

	speaker := 2
	s, err := model.Synthesize(context.Background(), "hello piper", &speaker)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	var blocks int
	var out bytes.Buffer
	for {
		b, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if len(b) > 8 {
			t.Errorf("block of %d bytes exceeds block size", len(b))
		}
		blocks++
		out.Write(b)
	}
	if blocks < 2 {
		t.Errorf("expected several blocks, got %d", blocks)
	}

	lines := strings.SplitN(out.String(), "\n", 2)
	if len(lines) != 2 {
		t.Fatalf("unexpected output %q", out.String())
	}
	args := lines[0]
	for _, want := range []string{
		"--model " + files.Model,
		"--config " + files.Config,
		"--output-raw",
		"--speaker 2",
		"--length-scale 1.5",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if strings.Contains(args, "--noise-scale") {
		t.Errorf("unset option passed: %q", args)
	}
	if lines[1] != "hello piper" {
		t.Errorf("stdin = %q, want %q", lines[1], "hello piper")
	}
}

func TestPiper_Failure(t *testing.T) {
	bin := fakePiper(t, `echo "no such voice" >&2; exit 3`)
	p := NewPiper(PiperOptions{Binary: bin, Logger: log.New(io.Discard)})

	model, err := p.Load(context.Background(), modelFiles(t))
	if err != nil {
		t.Fatal(err)
	}
	s, err := model.Synthesize(context.Background(), "hi", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Drain(s)
	if err == nil || !strings.Contains(err.Error(), "no such voice") {
		t.Errorf("Drain error = %v, want stderr in message", err)
	}
}

func TestPiper_LoadErrors(t *testing.T) {
	p := NewPiper(PiperOptions{Binary: "definitely-not-piper-binary", Logger: log.New(io.Discard)})
	if _, err := p.Load(context.Background(), modelFiles(t)); err == nil {
		t.Error("expected error for missing binary")
	}

	p = NewPiper(PiperOptions{Binary: fakePiper(t, "cat"), Logger: log.New(io.Discard)})
	_, err := p.Load(context.Background(), ModelFiles{Model: "/non/existent.onnx", Config: "/non/existent.onnx.json"})
	if err == nil {
		t.Error("expected error for missing model")
	}
}

// plainSynth has no Fingerprint method.
type plainSynth struct{}

func (plainSynth) Name() string { return "plain" }

func (plainSynth) Load(context.Context, ModelFiles) (Model, error) { return nil, nil }

func TestFingerprint(t *testing.T) {
	base := NewPiper(PiperOptions{LengthScale: 1, NoiseScale: 0.667, NoiseW: 0.8, SentenceSilence: 0.2})
	slower := NewPiper(PiperOptions{LengthScale: 1.5, NoiseScale: 0.667, NoiseW: 0.8, SentenceSilence: 0.2})
	loud := NewMock()
	loud.BytesPerRune = 200

	prints := map[string]string{
		"piper":        Fingerprint(base),
		"slower piper": Fingerprint(slower),
		"mock":         Fingerprint(NewMock()),
		"loud mock":    Fingerprint(loud),
	}
	seen := make(map[string]string)
	for name, fp := range prints {
		if other, ok := seen[fp]; ok {
			t.Errorf("%s and %s share fingerprint %q", name, other, fp)
		}
		seen[fp] = name
	}

	if Fingerprint(base) != Fingerprint(NewPiper(PiperOptions{LengthScale: 1, NoiseScale: 0.667, NoiseW: 0.8, SentenceSilence: 0.2})) {
		t.Error("fingerprint is not deterministic")
	}
	if got := Fingerprint(plainSynth{}); got != "plain" {
		t.Errorf("Fingerprint without method = %q, want the name", got)
	}
	if got := Fingerprint(nil); got != "" {
		t.Errorf("Fingerprint(nil) = %q", got)
	}
}
