package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestDefault_Contents(t *testing.T) {
	c := Default()

	if got := c.Locales(); strings.Join(got, ",") != "de-DE,en-US" {
		t.Fatalf("Locales() = %v, want [de-DE en-US]", got)
	}

	voices, err := c.Voices("en-US")
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	want := "amy_low,amy_medium,arctic,bryce,danny,glados,hfc_female"
	if got := strings.Join(voices, ","); got != want {
		t.Errorf("Voices(en-US) = %s, want %s", got, want)
	}

	if Default() != c {
		t.Error("Default() returned a different catalog on the second call")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name      string
		locale    string
		voice     string
		modelFile string
	}{
		{"canonical locale", "en-US", "arctic", "en_US-arctic-medium.onnx"},
		{"underscore locale", "en_US", "amy_low", "en_US-amy-low.onnx"},
		{"lowercase locale", "de-de", "karlsson", "de_DE-karlsson-low.onnx"},
		{"github hosted voice", "en-US", "glados", "glados.onnx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Default().Lookup(tt.locale, tt.voice)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if e.ModelFile != tt.modelFile {
				t.Errorf("ModelFile = %s, want %s", e.ModelFile, tt.modelFile)
			}
			if e.SidecarFile() != tt.modelFile+".json" {
				t.Errorf("SidecarFile = %s", e.SidecarFile())
			}
			if e.ModelURL == "" || e.ConfigURL == "" {
				t.Errorf("entry has empty URLs: %+v", e)
			}
		})
	}
}

func TestLookup_UnknownVoice(t *testing.T) {
	_, err := Default().Lookup("en-US", "amy")
	if !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("expected ErrUnknownVoice, got %v", err)
	}

	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *LookupError, got %T", err)
	}
	if lookupErr.Voice != "amy" || lookupErr.Locale != "en-US" {
		t.Errorf("unexpected error fields: %+v", lookupErr)
	}

	got := strings.Join(lookupErr.Suggestions, ",")
	if !strings.Contains(got, "amy_low") || !strings.Contains(got, "amy_medium") {
		t.Errorf("Suggestions = %v, want amy_low and amy_medium", lookupErr.Suggestions)
	}
	if !strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error message lacks suggestions: %s", err)
	}
}

func TestLookup_UnknownLocale(t *testing.T) {
	tests := []string{"fr-FR", "not a locale!"}

	for _, locale := range tests {
		t.Run(locale, func(t *testing.T) {
			_, err := Default().Lookup(locale, "arctic")
			if !errors.Is(err, ErrUnknownLocale) {
				t.Fatalf("expected ErrUnknownLocale, got %v", err)
			}
			if errors.Is(err, ErrUnknownVoice) {
				t.Error("locale error should not match ErrUnknownVoice")
			}
		})
	}

	if _, err := Default().Voices("fr-FR"); !errors.Is(err, ErrUnknownLocale) {
		t.Errorf("Voices(fr-FR) error = %v, want ErrUnknownLocale", err)
	}
}

func TestLookup_ReturnsCopies(t *testing.T) {
	c := Default()
	e, err := c.Lookup("en-US", "arctic")
	if err != nil {
		t.Fatal(err)
	}
	e.ModelFile = "changed.onnx"

	again, _ := c.Lookup("en-US", "arctic")
	if again.ModelFile != "en_US-arctic-medium.onnx" {
		t.Errorf("catalog entry was mutated: %s", again.ModelFile)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid",
			yaml: "en_GB:\n  alan:\n    model_url: m\n    config_url: c\n    model_file: alan.onnx\n",
		},
		{
			name:    "missing model file",
			yaml:    "en-GB:\n  alan:\n    model_url: m\n    config_url: c\n",
			wantErr: true,
		},
		{
			name:    "bad locale",
			yaml:    "???:\n  alan:\n    model_url: m\n    config_url: c\n    model_file: f\n",
			wantErr: true,
		},
		{
			name:    "duplicate locale after normalization",
			yaml:    "en-GB:\n  a:\n    model_url: m\n    config_url: c\n    model_file: f\n" + "en_GB:\n  b:\n    model_url: m\n    config_url: c\n    model_file: f\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			yaml:    "[",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if _, err := c.Lookup("en-GB", "alan"); err != nil {
				t.Errorf("Lookup after Parse failed: %v", err)
			}
		})
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"en-US":  "en-US",
		"en_us":  "en-US",
		" de_DE": "de-DE",
	}
	for in, want := range tests {
		got, err := NormalizeLocale(in)
		if err != nil {
			t.Errorf("NormalizeLocale(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
