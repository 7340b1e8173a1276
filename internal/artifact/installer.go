package artifact

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/pipervoice/internal/catalog"
)

// Installer makes sure a voice's model and sidecar are present in a Store.
type Installer struct {
	catalog *catalog.Catalog
	store   Store
	fetcher Fetcher
	logger  *log.Logger

	mu sync.Mutex
}

// NewInstaller wires an installer. A nil logger uses the default logger.
func NewInstaller(c *catalog.Catalog, store Store, fetcher Fetcher, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default().WithPrefix("install")
	}
	return &Installer{
		catalog: c,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Catalog returns the catalog the installer resolves voices against.
func (i *Installer) Catalog() *catalog.Catalog {
	return i.catalog
}

// Store returns the backing store.
func (i *Installer) Store() Store {
	return i.store
}

// ModelRef returns the ref of the voice's model file.
func (i *Installer) ModelRef(locale, voice string) (Ref, error) {
	loc, e, err := i.lookup(locale, voice)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Locale: loc, Voice: voice, File: e.ModelFile}, nil
}

// SidecarRef returns the ref of the voice's JSON config.
func (i *Installer) SidecarRef(locale, voice string) (Ref, error) {
	loc, e, err := i.lookup(locale, voice)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Locale: loc, Voice: voice, File: e.SidecarFile()}, nil
}

// Installed reports whether both artifacts of the voice are present.
func (i *Installer) Installed(locale, voice string) bool {
	loc, e, err := i.lookup(locale, voice)
	if err != nil {
		return false
	}
	return i.store.Contains(Ref{Locale: loc, Voice: voice, File: e.ModelFile}) &&
		i.store.Contains(Ref{Locale: loc, Voice: voice, File: e.SidecarFile()})
}

// EnsureInstalled fetches whichever of the model and sidecar is missing.
// An installed voice costs no network activity. Unknown voices fail with a
// *catalog.LookupError, download or write failures with a *FetchError.
func (i *Installer) EnsureInstalled(ctx context.Context, locale, voice string) error {
	loc, e, err := i.lookup(locale, voice)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	artifacts := []struct {
		file string
		url  string
	}{
		{e.ModelFile, e.ModelURL},
		{e.SidecarFile(), e.ConfigURL},
	}

	for _, a := range artifacts {
		ref := Ref{Locale: loc, Voice: voice, File: a.file}
		if i.store.Contains(ref) {
			continue
		}

		i.logger.Info("Installing voice artifact", "voice", voice, "locale", loc, "file", a.file)
		err := i.store.Insert(ctx, ref, func(w io.Writer) error {
			return i.fetcher.Fetch(ctx, a.url, w)
		})
		if err != nil {
			return &FetchError{Locale: loc, Voice: voice, File: a.file, URL: a.url, Err: err}
		}
		i.logger.Debug("Installed", "path", i.store.Locate(ref))
	}

	return nil
}

func (i *Installer) lookup(locale, voice string) (string, catalog.Entry, error) {
	e, err := i.catalog.Lookup(locale, voice)
	if err != nil {
		return "", catalog.Entry{}, err
	}
	// Lookup succeeded, so the locale is valid.
	loc, _ := catalog.NormalizeLocale(locale)
	return loc, e, nil
}
