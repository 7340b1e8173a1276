package sidecar

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/pipervoice/internal/artifact"
)

// Resolver answers speaker and sample-rate questions about installed voices.
//
// ResolveSpeaker, Lookup and Speakers may download the voice first: a
// speaker list needs at least the sidecar on disk. SampleRate and Load never
// touch the network.
type Resolver struct {
	installer *artifact.Installer
	logger    *log.Logger
}

// NewResolver creates a resolver. A nil logger uses the default logger.
func NewResolver(installer *artifact.Installer, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default().WithPrefix("sidecar")
	}
	return &Resolver{installer: installer, logger: logger}
}

// Load reads and parses the sidecar of an installed voice. Catalog errors
// pass through unchanged; everything else is a *ReadError.
func (r *Resolver) Load(locale, voice string) (*Config, error) {
	ref, err := r.installer.SidecarRef(locale, voice)
	if err != nil {
		return nil, err
	}

	store := r.installer.Store()
	readErr := func(err error) error {
		return &ReadError{Locale: ref.Locale, Voice: voice, Path: store.Locate(ref), Err: err}
	}

	rc, err := store.Open(ref)
	if err != nil {
		return nil, readErr(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, readErr(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, readErr(err)
	}
	return cfg, nil
}

// SampleRate returns audio.sample_rate of an installed voice.
func (r *Resolver) SampleRate(locale, voice string) (int, error) {
	cfg, err := r.Load(locale, voice)
	if err != nil {
		return 0, err
	}
	if cfg.SampleRate <= 0 {
		ref, _ := r.installer.SidecarRef(locale, voice)
		return 0, &ReadError{Locale: ref.Locale, Voice: voice, Path: r.installer.Store().Locate(ref), Err: ErrNoSampleRate}
	}
	return cfg.SampleRate, nil
}

// ResolveSpeaker maps a speaker name to its id. ok is false when the name is
// unknown, and also for DefaultSpeaker on a single-speaker voice; in both
// cases the engine's default speaker applies. May install the voice.
func (r *Resolver) ResolveSpeaker(ctx context.Context, locale, voice, name string) (id int, ok bool, err error) {
	cfg, err := r.ensureLoaded(ctx, locale, voice)
	if err != nil {
		return 0, false, err
	}

	id, ok = cfg.SpeakerID(name)
	if !ok && !(len(cfg.Speakers) == 0 && name == DefaultSpeaker) {
		r.logger.Debug("Speaker not in voice", "voice", voice, "speaker", name)
	}
	return id, ok, nil
}

// Lookup is ResolveSpeaker for callers that want an error. It returns nil
// for DefaultSpeaker on a single-speaker voice and ErrSpeakerNotFound for
// other unknown names. May install the voice.
func (r *Resolver) Lookup(ctx context.Context, locale, voice, name string) (*int, error) {
	cfg, err := r.ensureLoaded(ctx, locale, voice)
	if err != nil {
		return nil, err
	}

	if id, ok := cfg.SpeakerID(name); ok {
		return &id, nil
	}
	if len(cfg.Speakers) == 0 && name == DefaultSpeaker {
		return nil, nil
	}
	return nil, ErrSpeakerNotFound
}

// Speakers lists the voice's speakers in file order, or ["Default"] for a
// single-speaker voice. May install the voice.
func (r *Resolver) Speakers(ctx context.Context, locale, voice string) ([]string, error) {
	cfg, err := r.ensureLoaded(ctx, locale, voice)
	if err != nil {
		return nil, err
	}
	return cfg.SpeakerNames(), nil
}

func (r *Resolver) ensureLoaded(ctx context.Context, locale, voice string) (*Config, error) {
	ref, err := r.installer.SidecarRef(locale, voice)
	if err != nil {
		return nil, err
	}

	if !r.installer.Store().Contains(ref) {
		r.logger.Info("Sidecar missing, installing voice", "voice", voice, "locale", ref.Locale)
		if err := r.installer.EnsureInstalled(ctx, locale, voice); err != nil {
			return nil, err
		}
	}
	return r.Load(locale, voice)
}
