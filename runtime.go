package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pipervoice/internal/artifact"
	"github.com/dgnsrekt/pipervoice/internal/cache"
	"github.com/dgnsrekt/pipervoice/internal/catalog"
	"github.com/dgnsrekt/pipervoice/internal/engine"
	"github.com/dgnsrekt/pipervoice/internal/session"
	"github.com/dgnsrekt/pipervoice/internal/sidecar"
)

// runtime holds the components shared by the commands.
type runtime struct {
	locale    string
	installer *artifact.Installer
	resolver  *sidecar.Resolver
	cache     *cache.Manager
}

// newRuntime wires everything that doesn't load a voice.
func newRuntime() (*runtime, error) {
	dir, err := modelsDir()
	if err != nil {
		return nil, err
	}

	httpCfg, err := artifact.LoadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	installer := artifact.NewInstaller(
		catalog.Default(),
		artifact.NewDiskStore(dir),
		artifact.NewHTTPFetcher(httpCfg, log.Default().WithPrefix("fetch")),
		log.Default().WithPrefix("install"),
	)
	log.Debug("Models directory", "path", dir)

	return &runtime{
		locale:    viper.GetString("language"),
		installer: installer,
		resolver:  sidecar.NewResolver(installer, log.Default().WithPrefix("sidecar")),
	}, nil
}

// openSession loads the configured default voice, downloading it if
// needed. A --voice flag given to say replaces the default voice here so it
// isn't loaded twice.
func (r *runtime) openSession(ctx context.Context, voice string) (*session.Session, error) {
	if voice == "" {
		voice = viper.GetString("piper.voice")
	}

	cfg := session.Config{
		Locale:    r.locale,
		Voice:     voice,
		Speaker:   viper.GetString("piper.speaker"),
		Installer: r.installer,
		Resolver:  r.resolver,
		Engine:    newSynthesizer(),
		Logger:    log.Default().WithPrefix("session"),
	}

	if viper.GetBool("cache.enabled") {
		m, err := openCache()
		if err != nil {
			log.Warn("Audio cache disabled", "err", err)
		} else {
			r.cache = m
			cfg.Cache = m
		}
	}

	return session.New(ctx, cfg)
}

// Close stops the audio cache, if any.
func (r *runtime) Close() error {
	if r.cache == nil {
		return nil
	}
	memory, disk := r.cache.Stats()
	log.Debug("Audio cache",
		"memory_hit_rate", fmt.Sprintf("%.2f", memory.HitRate()),
		"disk_hit_rate", fmt.Sprintf("%.2f", disk.HitRate()),
		"disk_items", disk.Items)
	return r.cache.Close()
}

func newSynthesizer() engine.Synthesizer {
	if viper.GetString("engine") == "mock" {
		return engine.NewMock()
	}
	return engine.NewPiper(engine.PiperOptions{
		Binary:          viper.GetString("piper.binary"),
		LengthScale:     viper.GetFloat64("piper.length_scale"),
		NoiseScale:      viper.GetFloat64("piper.noise_scale"),
		NoiseW:          viper.GetFloat64("piper.noise_w"),
		SentenceSilence: viper.GetFloat64("piper.sentence_silence"),
		Logger:          log.Default().WithPrefix("piper"),
	})
}

func openCache() (*cache.Manager, error) {
	dir := viper.GetString("cache.dir")
	if dir == "" {
		d, err := gap.NewScope(gap.User, "pipervoice").CacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(d, "audio")
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}

	cfg := cache.DefaultConfig(dir)
	cfg.MemoryCapacity = int64(viper.GetInt("cache.memory_mb")) << 20
	cfg.DiskCapacity = int64(viper.GetInt("cache.disk_mb")) << 20
	cfg.TTL = time.Duration(viper.GetInt("cache.ttl_days")) * 24 * time.Hour
	return cache.NewManager(cfg, log.Default().WithPrefix("cache"))
}

// modelsDir is piper.models_dir with ~ expanded, or piper/ in the user data
// dir.
func modelsDir() (string, error) {
	dir := viper.GetString("piper.models_dir")
	if dir == "" {
		return gap.NewScope(gap.User, "pipervoice").DataPath("piper")
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("invalid models dir %q: %w", dir, err)
	}
	return expanded, nil
}
