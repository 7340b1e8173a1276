// Package audio plays framed WAV buffers on the default output device.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/pipervoice/pkg/wav"
)

var (
	// ErrEmpty is returned for buffers without samples.
	ErrEmpty = errors.New("audio data is empty")

	// ErrUnsupported is returned for anything but 16-bit mono or stereo PCM.
	ErrUnsupported = errors.New("unsupported audio format")

	// ErrSampleRateChanged is returned when a buffer's sample rate differs
	// from the one the output device was opened with. The device can only
	// be opened once per process.
	ErrSampleRateChanged = errors.New("sample rate differs from the open audio device")
)

const pollInterval = 20 * time.Millisecond

// Player owns the process' single output device. The device is opened on
// the first Play with that buffer's format.
type Player struct {
	mu     sync.Mutex
	ctx    *oto.Context
	format wav.Format
	logger *log.Logger
}

// NewPlayer returns a player. No device is opened until Play.
func NewPlayer(logger *log.Logger) *Player {
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}
	return &Player{logger: logger}
}

// Play blocks until audio has been played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	format, pcm, err := p.prepare(audio)
	if err != nil {
		return err
	}
	if err := p.open(format); err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()

	p.logger.Debug("Playing", "duration", wav.Duration(format, len(pcm)).Round(time.Millisecond))
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// prepare validates audio against the open device without touching it.
func (p *Player) prepare(audio []byte) (wav.Format, []byte, error) {
	format, pcm, err := wav.ParseHeader(audio)
	if err != nil {
		return wav.Format{}, nil, fmt.Errorf("cannot play buffer: %w", err)
	}
	if len(pcm) == 0 {
		return wav.Format{}, nil, ErrEmpty
	}
	if format.BitsPerSample != 16 || (format.Channels != 1 && format.Channels != 2) {
		return wav.Format{}, nil, fmt.Errorf("%w: %d-bit, %d channels", ErrUnsupported, format.BitsPerSample, format.Channels)
	}
	if p.format.SampleRate != 0 && p.format != format {
		return wav.Format{}, nil, fmt.Errorf("%w: device %d Hz, buffer %d Hz", ErrSampleRateChanged, p.format.SampleRate, format.SampleRate)
	}
	return format, pcm, nil
}

func (p *Player) open(format wav.Format) error {
	if p.ctx != nil {
		return nil
	}

	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	p.ctx = octx
	p.format = format
	p.logger.Debug("Audio device open", "rate", format.SampleRate, "channels", format.Channels)
	return nil
}
