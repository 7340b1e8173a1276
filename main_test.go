package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pipervoice/internal/artifact"
	"github.com/dgnsrekt/pipervoice/internal/catalog"
	"github.com/dgnsrekt/pipervoice/internal/engine"
	"github.com/dgnsrekt/pipervoice/internal/session"
	"github.com/dgnsrekt/pipervoice/internal/sidecar"
	"github.com/dgnsrekt/pipervoice/pkg/wav"
)

const testCatalog = `
en-US:
  alpha:
    model_url: https://example.test/alpha.onnx
    config_url: https://example.test/alpha.onnx.json
    model_file: alpha.onnx
  beta:
    model_url: https://example.test/beta.onnx
    config_url: https://example.test/beta.onnx.json
    model_file: beta.onnx
`

type offlineFetcher struct{}

func (offlineFetcher) Fetch(context.Context, string, io.Writer) error {
	return errors.New("offline")
}

// newTestInstaller returns an installer whose store holds alpha only.
func newTestInstaller(t *testing.T, store artifact.Store) *artifact.Installer {
	t.Helper()

	c, err := catalog.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	inst := artifact.NewInstaller(c, store, offlineFetcher{}, log.New(io.Discard))

	model, _ := inst.ModelRef("en-US", "alpha")
	config, _ := inst.SidecarRef("en-US", "alpha")
	for ref, body := range map[artifact.Ref]string{
		model:  "onnx",
		config: `{"audio": {"sample_rate": 16000}, "speaker_id_map": {"narrator": 0}}`,
	} {
		err := store.Insert(context.Background(), ref, func(w io.Writer) error {
			_, err := io.WriteString(w, body)
			return err
		})
		if err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return inst
}

func TestReadPhrase(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "notes.md")
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(md, []byte("# Hello\n\n```\ncode\n```\n\nWorld"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(txt, []byte("# not a heading"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		file    string
		want    string
		wantErr bool
	}{
		{name: "args", args: []string{"hello", "there"}, want: "hello there"},
		{name: "markdown file", file: md, want: "Hello. World."},
		{name: "text file", file: txt, want: "# not a heading"},
		{name: "missing file", file: filepath.Join(dir, "nope.txt"), wantErr: true},
		{name: "args and file", args: []string{"hi"}, file: txt, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sayFile = tt.file
			t.Cleanup(func() { sayFile = "" })

			got, err := readPhrase(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readPhrase = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnsureConfigFile(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "sub", "pipervoice.yml")
	got, err := ensureConfigFile(file)
	if err != nil {
		t.Fatalf("ensureConfigFile: %v", err)
	}
	if got != file {
		t.Errorf("file = %q, want %q", got, file)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if string(b) != defaultConfig {
		t.Error("default config content differs")
	}

	// An existing file is left alone.
	if err := os.WriteFile(file, []byte("language: de-DE\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ensureConfigFile(file); err != nil {
		t.Fatal(err)
	}
	if b, _ := os.ReadFile(file); string(b) != "language: de-DE\n" {
		t.Errorf("existing config overwritten: %q", b)
	}

	if _, err := ensureConfigFile(filepath.Join(dir, "config.toml")); err == nil {
		t.Error("expected error for .toml config")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}
	if got := v.GetString("piper.voice"); got != "arctic" {
		t.Errorf("piper.voice = %q", got)
	}
	if got := v.GetFloat64("piper.noise_scale"); got != 0.667 {
		t.Errorf("piper.noise_scale = %v", got)
	}
}

func TestPrintVoices(t *testing.T) {
	store := artifact.NewDiskStore(t.TempDir())
	inst := newTestInstaller(t, store)

	var buf bytes.Buffer
	if err := printVoices(&buf, inst, "en_us", "beta"); err != nil {
		t.Fatalf("printVoices: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "en-US") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "alpha") || !strings.Contains(lines[1], "installed") || !strings.Contains(lines[1], "4 B") {
		t.Errorf("alpha line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "*") || strings.Contains(lines[2], "installed") {
		t.Errorf("beta line = %q", lines[2])
	}

	if err := printVoices(&buf, inst, "fr-FR", "beta"); !errors.Is(err, catalog.ErrUnknownLocale) {
		t.Errorf("err = %v, want ErrUnknownLocale", err)
	}
}

func TestValidateOptions(t *testing.T) {
	t.Cleanup(func() {
		viper.Set("language", "en-US")
		viper.Set("engine", "piper")
	})

	viper.Set("language", "de_de")
	viper.Set("engine", "mock")
	if err := validateOptions(rootCmd, nil); err != nil {
		t.Fatalf("validateOptions: %v", err)
	}
	if got := viper.GetString("language"); got != "de-DE" {
		t.Errorf("language = %q, want de-DE", got)
	}

	viper.Set("engine", "espeak")
	if err := validateOptions(rootCmd, nil); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestCacheCommand_Clear(t *testing.T) {
	viper.Set("cache.dir", t.TempDir())
	t.Cleanup(func() {
		viper.Set("cache.dir", "")
		cacheClear = false
	})

	m, err := openCache()
	if err != nil {
		t.Fatalf("openCache: %v", err)
	}
	if err := m.Put("phrase", []byte("RIFF audio")); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cacheCmd.SetOut(&out)
	t.Cleanup(func() { cacheCmd.SetOut(nil) })

	if err := cacheCmd.RunE(cacheCmd, nil); err != nil {
		t.Fatalf("cache: %v", err)
	}
	if !strings.Contains(out.String(), "1 phrases") {
		t.Errorf("stats output = %q", out.String())
	}

	cacheClear = true
	if err := cacheCmd.RunE(cacheCmd, nil); err != nil {
		t.Fatalf("cache --clear: %v", err)
	}

	m, err = openCache()
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck
	if _, ok := m.Get("phrase"); ok {
		t.Error("phrase still cached after --clear")
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close() //nolint:errcheck
	if isTerminal(f) {
		t.Error("regular file reported as terminal")
	}
}

type recordingPlayer struct {
	mu     sync.Mutex
	played [][]byte
	done   chan struct{}
}

func (p *recordingPlayer) Play(_ context.Context, b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, b)
	if len(p.played) == 1 {
		close(p.done)
	}
	return nil
}

func TestFileWatcher(t *testing.T) {
	inst := newTestInstaller(t, artifact.NewMemoryStore())
	mock := engine.NewMock()
	sess, err := session.New(context.Background(), session.Config{
		Locale:    "en-US",
		Voice:     "alpha",
		Installer: inst,
		Resolver:  sidecar.NewResolver(inst, log.New(io.Discard)),
		Engine:    mock,
		Logger:    log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	defer sess.Close() //nolint:errcheck

	dir, err := filepath.Abs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "draft.md")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	p := &recordingPlayer{done: make(chan struct{})}
	w := &fileWatcher{
		path:     path,
		selector: "#narrator",
		session:  sess,
		player:   p,
		logger:   log.New(io.Discard),
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.run(ctx) }()

	// The watch starts asynchronously; keep saving until it is seen.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(2 * watchDebounce)
	defer tick.Stop()
loop:
	for {
		if err := os.WriteFile(path, []byte("# Chapter one"), 0o600); err != nil {
			t.Fatal(err)
		}
		select {
		case <-p.done:
			break loop
		case <-deadline:
			t.Fatal("file change was never spoken")
		case <-tick.C:
		}
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("run returned %v", err)
	}

	calls := mock.Calls()
	if len(calls) == 0 {
		t.Fatal("engine never called")
	}
	if calls[0].Text != "Chapter one." {
		t.Errorf("text = %q", calls[0].Text)
	}
	if calls[0].Speaker == nil || *calls[0].Speaker != 0 {
		t.Errorf("speaker = %v, want 0", calls[0].Speaker)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	format, _, err := wav.ParseHeader(p.played[0])
	if err != nil {
		t.Fatalf("played audio is not WAV: %v", err)
	}
	if format.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", format.SampleRate)
	}
}
