// Package sidecar reads the JSON config that ships next to every Piper
// model and maps speaker names to the numeric ids the engine expects.
package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultSpeaker is the single implicit speaker of a voice whose
// speaker_id_map is empty.
const DefaultSpeaker = "Default"

// Speaker is one entry of speaker_id_map.
type Speaker struct {
	Name string
	ID   int
}

// Config is the subset of a Piper voice config pipervoice uses.
type Config struct {
	SampleRate  int
	Quality     string
	Language    string
	Dataset     string
	NumSpeakers int

	// Speakers keeps the order of speaker_id_map in the file.
	Speakers []Speaker
}

type rawConfig struct {
	Audio struct {
		SampleRate int    `json:"sample_rate"`
		Quality    string `json:"quality"`
	} `json:"audio"`
	Language     json.RawMessage `json:"language"`
	Dataset      string          `json:"dataset"`
	NumSpeakers  int             `json:"num_speakers"`
	SpeakerIDMap json.RawMessage `json:"speaker_id_map"`
}

// Parse decodes a sidecar file.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	speakers, err := decodeSpeakerMap(raw.SpeakerIDMap)
	if err != nil {
		return nil, err
	}

	return &Config{
		SampleRate:  raw.Audio.SampleRate,
		Quality:     raw.Audio.Quality,
		Language:    languageCode(raw.Language),
		Dataset:     raw.Dataset,
		NumSpeakers: raw.NumSpeakers,
		Speakers:    speakers,
	}, nil
}

// SpeakerNames lists speakers in file order, or just DefaultSpeaker when
// the voice has none.
func (c *Config) SpeakerNames() []string {
	if len(c.Speakers) == 0 {
		return []string{DefaultSpeaker}
	}
	names := make([]string, len(c.Speakers))
	for i, s := range c.Speakers {
		names[i] = s.Name
	}
	return names
}

// SpeakerID returns the id of a named speaker.
func (c *Config) SpeakerID(name string) (int, bool) {
	for _, s := range c.Speakers {
		if s.Name == name {
			return s.ID, true
		}
	}
	return 0, false
}

// decodeSpeakerMap walks the object token by token; unmarshalling into a
// Go map would lose the key order.
func decodeSpeakerMap(raw json.RawMessage) ([]Speaker, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("speaker_id_map is not an object")
	}

	var speakers []Speaker
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)

		var id int
		if err := dec.Decode(&id); err != nil {
			return nil, fmt.Errorf("speaker %q: %w", name, err)
		}
		speakers = append(speakers, Speaker{Name: name, ID: id})
	}
	return speakers, nil
}

// languageCode accepts both {"code": "en_US"} and a bare string.
func languageCode(raw json.RawMessage) string {
	var obj struct {
		Code string `json:"code"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Code != "" {
		return obj.Code
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}
