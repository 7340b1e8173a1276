package session

import "strings"

// Selector is a parsed voice selector: "", "voice" or "voice#speaker".
type Selector struct {
	Voice   string
	Speaker string

	// HasSpeaker is set when the selector contained a '#'.
	HasSpeaker bool
}

// ParseSelector splits s at its first '#'. An empty voice part means the
// active voice.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	voice, speaker, found := strings.Cut(s, "#")
	return Selector{
		Voice:      strings.TrimSpace(voice),
		Speaker:    strings.TrimSpace(speaker),
		HasSpeaker: found,
	}
}

// IsZero reports whether the selector names neither voice nor speaker.
func (s Selector) IsZero() bool {
	return s.Voice == "" && !s.HasSpeaker
}

func (s Selector) String() string {
	if s.HasSpeaker {
		return s.Voice + "#" + s.Speaker
	}
	return s.Voice
}
