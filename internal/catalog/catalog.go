// Package catalog holds the static table of Piper voices that pipervoice
// knows how to install, keyed by locale and voice name.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var voicesYAML []byte

// maxSuggestions caps the "did you mean" list of a LookupError.
const maxSuggestions = 3

// Entry describes where a voice's artifacts live and what the model file is
// called once installed.
type Entry struct {
	ModelURL  string `yaml:"model_url"`
	ConfigURL string `yaml:"config_url"`
	ModelFile string `yaml:"model_file"`
}

// SidecarFile is the name of the JSON config stored next to the model.
func (e Entry) SidecarFile() string {
	return e.ModelFile + ".json"
}

// Catalog is an immutable locale → voice → Entry table.
type Catalog struct {
	voices map[string]map[string]Entry
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog embedded in the binary. It is parsed once.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(voicesYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded voices.yaml: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse builds a catalog from YAML. Locale keys are canonicalized and every
// entry must carry both URLs and a model file name.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]map[string]Entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	voices := make(map[string]map[string]Entry, len(raw))
	for loc, entries := range raw {
		canonical, err := NormalizeLocale(loc)
		if err != nil {
			return nil, fmt.Errorf("catalog locale %q: %w", loc, err)
		}
		if _, dup := voices[canonical]; dup {
			return nil, fmt.Errorf("catalog locale %q listed twice", canonical)
		}
		table := make(map[string]Entry, len(entries))
		for name, e := range entries {
			if e.ModelURL == "" || e.ConfigURL == "" || e.ModelFile == "" {
				return nil, fmt.Errorf("catalog entry %s/%s is incomplete", canonical, name)
			}
			table[name] = e
		}
		voices[canonical] = table
	}

	return &Catalog{voices: voices}, nil
}

// NormalizeLocale canonicalizes a locale string such as "en_us" to "en-US".
func NormalizeLocale(locale string) (string, error) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag.String(), nil
}

// Lookup returns the entry for (locale, voice). Unknown pairs produce a
// *LookupError.
func (c *Catalog) Lookup(locale, voice string) (Entry, error) {
	canonical, table, err := c.locale(locale)
	if err != nil {
		return Entry{}, err
	}

	e, ok := table[voice]
	if !ok {
		return Entry{}, &LookupError{
			Locale:      canonical,
			Voice:       voice,
			Suggestions: suggest(voice, sortedKeys(table)),
			err:         ErrUnknownVoice,
		}
	}
	return e, nil
}

// Voices lists the voice names of a locale in alphabetical order.
func (c *Catalog) Voices(locale string) ([]string, error) {
	_, table, err := c.locale(locale)
	if err != nil {
		return nil, err
	}
	return sortedKeys(table), nil
}

// Locales lists every locale in the catalog in alphabetical order.
func (c *Catalog) Locales() []string {
	return sortedKeys(c.voices)
}

func (c *Catalog) locale(locale string) (string, map[string]Entry, error) {
	canonical, err := NormalizeLocale(locale)
	if err != nil {
		return locale, nil, &LookupError{
			Locale:      locale,
			Suggestions: suggest(locale, c.Locales()),
			err:         ErrUnknownLocale,
		}
	}

	table, ok := c.voices[canonical]
	if !ok {
		return canonical, nil, &LookupError{
			Locale:      canonical,
			Suggestions: suggest(canonical, c.Locales()),
			err:         ErrUnknownLocale,
		}
	}
	return canonical, table, nil
}

func suggest(name string, candidates []string) []string {
	if name == "" {
		return nil
	}

	matches := fuzzy.Find(name, candidates)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
