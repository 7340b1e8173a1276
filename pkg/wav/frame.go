// Package wav wraps raw little-endian PCM in a canonical RIFF/WAVE container
// and reads such containers back.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// HeaderSize is the length of the canonical PCM header written by Frame.
const HeaderSize = 44

const (
	fmtChunkSize = 16
	formatPCM    = 1

	// Frame only emits mono 16-bit audio.
	frameChannels      = 1
	frameBitsPerSample = 16
)

var magic = []byte("RIFF")

var (
	// ErrNotFramed is returned by ParseHeader for input without a RIFF/WAVE header.
	ErrNotFramed = errors.New("not a RIFF/WAVE buffer")

	// ErrUnsupportedFormat is returned for containers that are not plain PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAVE format")
)

// Format describes the audio carried by a framed buffer.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BlockAlign is the size in bytes of one frame across all channels.
func (f Format) BlockAlign() int {
	return f.BitsPerSample * f.Channels / 8
}

// IsFramed reports whether b already starts with the RIFF magic.
func IsFramed(b []byte) bool {
	return bytes.HasPrefix(b, magic)
}

// Frame prepends a 44-byte RIFF/WAVE header to pcm. Buffers that are already
// framed are returned unchanged. The channels and bitsPerSample arguments are
// accepted for symmetry with Format but the output is always mono 16-bit.
func Frame(pcm []byte, sampleRate, bitsPerSample, channels int) []byte {
	if IsFramed(pcm) {
		return pcm
	}

	f := Format{SampleRate: sampleRate, Channels: frameChannels, BitsPerSample: frameBitsPerSample}
	blockAlign := f.BlockAlign()

	out := make([]byte, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], magic)
	le.PutUint32(out[4:8], uint32(len(pcm)+HeaderSize))
	copy(out[8:16], "WAVEfmt ")
	le.PutUint32(out[16:20], fmtChunkSize)
	le.PutUint16(out[20:22], formatPCM)
	le.PutUint16(out[22:24], uint16(f.Channels))
	le.PutUint32(out[24:28], uint32(f.SampleRate))
	le.PutUint32(out[28:32], uint32(f.SampleRate*blockAlign))
	le.PutUint16(out[32:34], uint16(blockAlign))
	le.PutUint16(out[34:36], uint16(f.BitsPerSample))
	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)

	return out
}

// ParseHeader reads the format of a framed buffer and returns its PCM
// payload. Chunks other than "fmt " and "data" are skipped.
func ParseHeader(b []byte) (Format, []byte, error) {
	if len(b) < 12 || !IsFramed(b) || string(b[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotFramed
	}

	le := binary.LittleEndian
	var (
		f       Format
		haveFmt bool
	)
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(le.Uint32(b[off+4 : off+8]))
		body := b[off+8:]

		switch id {
		case "fmt ":
			if size < fmtChunkSize || len(body) < fmtChunkSize {
				return Format{}, nil, ErrNotFramed
			}
			if le.Uint16(body[0:2]) != formatPCM {
				return Format{}, nil, ErrUnsupportedFormat
			}
			f = Format{
				Channels:      int(le.Uint16(body[2:4])),
				SampleRate:    int(le.Uint32(body[4:8])),
				BitsPerSample: int(le.Uint16(body[14:16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, ErrNotFramed
			}
			if size > len(body) {
				size = len(body)
			}
			return f, body[:size], nil
		}

		// Chunks are padded to an even length.
		off += 8 + size + size%2
	}

	return Format{}, nil, ErrNotFramed
}

// Duration returns the playing time of n bytes of PCM in format f.
func Duration(f Format, n int) time.Duration {
	perSecond := f.SampleRate * f.BlockAlign()
	if perSecond <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(perSecond)
}
