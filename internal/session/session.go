// Package session owns the loaded voice model and turns phrases into framed
// WAV audio, reloading the model only when the requested voice changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"

	"github.com/dgnsrekt/pipervoice/internal/artifact"
	"github.com/dgnsrekt/pipervoice/internal/cache"
	"github.com/dgnsrekt/pipervoice/internal/catalog"
	"github.com/dgnsrekt/pipervoice/internal/engine"
	"github.com/dgnsrekt/pipervoice/internal/sidecar"
	"github.com/dgnsrekt/pipervoice/pkg/wav"
)

// DefaultSampleRate is used when a voice's sidecar has no usable sample rate.
const DefaultSampleRate = 22050

// ErrNotLoaded is returned by Say on a closed session without a voice selector.
var ErrNotLoaded = errors.New("no voice loaded")

// State is the lifecycle state of a Session.
type State int

const (
	Unloaded State = iota
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request is one synthesis call.
type Request struct {
	Phrase   string
	Selector string
}

// AudioCache stores framed audio by key. Implementations must be safe for
// concurrent use.
type AudioCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// Config wires a Session.
type Config struct {
	Locale  string
	Voice   string
	Speaker string

	Installer *artifact.Installer
	Resolver  *sidecar.Resolver
	Engine    engine.Synthesizer

	// Cache is optional.
	Cache AudioCache

	Logger *log.Logger
}

// Session is the single mutable voice state of the process. All methods
// are safe for concurrent use; each holds the session lock for its whole
// duration so a voice change and the synthesis that follows are atomic.
type Session struct {
	mu sync.Mutex

	locale    string
	installer *artifact.Installer
	resolver  *sidecar.Resolver
	engine    engine.Synthesizer
	engineID  string
	cache     AudioCache
	logger    *log.Logger

	state       State
	activeVoice string
	model       engine.Model
	sampleRates map[string]int

	speakerName string
	speakerID   *int
}

// New creates a session and synchronously installs and loads cfg.Voice,
// which may download the voice. An unknown cfg.Speaker is logged and the
// engine default is used.
func New(ctx context.Context, cfg Config) (*Session, error) {
	locale, err := catalog.NormalizeLocale(cfg.Locale)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("session")
	}

	s := &Session{
		locale:      locale,
		installer:   cfg.Installer,
		resolver:    cfg.Resolver,
		engine:      cfg.Engine,
		engineID:    engine.Fingerprint(cfg.Engine),
		cache:       cfg.Cache,
		logger:      logger,
		sampleRates: make(map[string]int),
		speakerName: cfg.Speaker,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectVoiceLocked(ctx, cfg.Voice); err != nil {
		return nil, err
	}
	return s, nil
}

// Locale returns the canonical locale of the session.
func (s *Session) Locale() string {
	return s.locale
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveVoice returns the voice whose model is loaded.
func (s *Session) ActiveVoice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeVoice
}

// DefaultSpeaker returns the persisted speaker name and the id it resolved
// to on the active voice. A nil id means the engine default.
func (s *Session) DefaultSpeaker() (string, *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerName, copyID(s.speakerID)
}

// SampleRate returns the cached sample rate of a voice loaded earlier.
func (s *Session) SampleRate(voice string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate, ok := s.sampleRates[voice]
	return rate, ok
}

// SelectVoice makes voice the active voice, installing and loading it if it
// is not already active. On error the session is left unchanged.
func (s *Session) SelectVoice(ctx context.Context, voice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectVoiceLocked(ctx, voice)
}

// SetDefaultSpeaker persists the speaker used by calls without a speaker
// selector. An empty name restores the engine default. Names unknown to the
// active voice return sidecar.ErrSpeakerNotFound and change nothing. May
// install the active voice's sidecar.
func (s *Session) SetDefaultSpeaker(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		s.speakerName, s.speakerID = "", nil
		return nil
	}

	id, err := s.resolver.Lookup(ctx, s.locale, s.activeVoice, name)
	if err != nil {
		return fmt.Errorf("speaker %q of voice %s: %w", name, s.activeVoice, err)
	}
	s.speakerName, s.speakerID = name, id
	return nil
}

// Say synthesizes req.Phrase and returns it as a WAV buffer.
//
// A selector of "voice" switches the active voice for this and later calls
// and uses the engine default speaker for this call. "voice#speaker" does
// the same but uses speaker for this call only. An empty selector uses the
// active voice and the default speaker.
func (s *Session) Say(ctx context.Context, req Request) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := ParseSelector(req.Selector)
	speaker := s.speakerID

	if !sel.IsZero() {
		voice := sel.Voice
		if voice == "" {
			voice = s.activeVoice
		}
		if err := s.selectVoiceLocked(ctx, voice); err != nil {
			return nil, err
		}

		speaker = nil
		if sel.HasSpeaker {
			id, err := s.resolveSpeakerLocked(ctx, voice, sel.Speaker)
			if err != nil {
				return nil, err
			}
			speaker = id
		}
	}

	if s.state != Loaded {
		return nil, ErrNotLoaded
	}

	var key string
	if s.cache != nil {
		key = cache.Key(s.engineID, s.locale, s.activeVoice, speaker, req.Phrase)
		if audio, ok := s.cache.Get(key); ok {
			s.logger.Debug("Cache hit", "voice", s.activeVoice, "text", preview(req.Phrase))
			return audio, nil
		}
	}

	stream, err := s.model.Synthesize(ctx, req.Phrase, speaker)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	pcm, err := engine.Drain(stream)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	audio := wav.Frame(pcm, s.sampleRates[s.activeVoice], 16, 1)

	if s.cache != nil {
		if err := s.cache.Put(key, audio); err != nil {
			s.logger.Warn("Failed to cache audio", "err", err)
		}
	}

	s.logger.Debug("Synthesized",
		"voice", s.activeVoice,
		"text", preview(req.Phrase),
		"bytes", len(audio))
	return audio, nil
}

// Close releases the loaded model. The session can be revived with
// SelectVoice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.model != nil {
		err = s.model.Close()
		s.model = nil
	}
	s.state = Unloaded
	s.activeVoice = ""
	return err
}

func (s *Session) selectVoiceLocked(ctx context.Context, voice string) error {
	if s.state == Loaded && voice == s.activeVoice {
		return nil
	}

	if err := s.installer.EnsureInstalled(ctx, s.locale, voice); err != nil {
		return err
	}

	modelRef, err := s.installer.ModelRef(s.locale, voice)
	if err != nil {
		return err
	}
	sidecarRef, err := s.installer.SidecarRef(s.locale, voice)
	if err != nil {
		return err
	}

	store := s.installer.Store()
	model, err := s.engine.Load(ctx, engine.ModelFiles{
		Voice:  voice,
		Model:  store.Locate(modelRef),
		Config: store.Locate(sidecarRef),
	})
	if err != nil {
		return fmt.Errorf("failed to load voice %s: %w", voice, err)
	}

	if s.model != nil {
		if err := s.model.Close(); err != nil {
			s.logger.Warn("Failed to release previous model", "voice", s.activeVoice, "err", err)
		}
	}
	s.model = model

	if _, ok := s.sampleRates[voice]; !ok {
		rate, err := s.resolver.SampleRate(s.locale, voice)
		if err != nil {
			s.logger.Warn("Using default sample rate", "voice", voice, "rate", DefaultSampleRate, "err", err)
			rate = DefaultSampleRate
		}
		s.sampleRates[voice] = rate
	}

	s.logger.Info("Voice loaded", "voice", voice, "previous", s.activeVoice, "rate", s.sampleRates[voice])
	s.activeVoice = voice
	s.state = Loaded

	s.speakerID = nil
	if s.speakerName != "" {
		id, err := s.resolver.Lookup(ctx, s.locale, voice, s.speakerName)
		if err != nil {
			s.logger.Info("Default speaker not available, using engine default",
				"voice", voice, "speaker", s.speakerName, "err", err)
		}
		s.speakerID = id
	}
	return nil
}

// resolveSpeakerLocked treats unknown speakers and unreadable sidecars as
// "engine default". Catalog and fetch errors are returned.
func (s *Session) resolveSpeakerLocked(ctx context.Context, voice, name string) (*int, error) {
	id, ok, err := s.resolver.ResolveSpeaker(ctx, s.locale, voice, name)
	switch {
	case errors.Is(err, sidecar.ErrRead):
		s.logger.Warn("Cannot read speakers, using engine default", "voice", voice, "err", err)
		return nil, nil
	case err != nil:
		return nil, err
	case !ok:
		if name != sidecar.DefaultSpeaker {
			s.logger.Info("Speaker not found, using engine default", "voice", voice, "speaker", name)
		}
		return nil, nil
	}
	return &id, nil
}

func preview(text string) string {
	return runewidth.Truncate(text, 40, "…")
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
