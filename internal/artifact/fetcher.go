package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// Fetcher copies the resource at url into w.
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) error
}

// HTTPConfig tunes HTTPFetcher. It is read from the environment.
type HTTPConfig struct {
	// Timeout bounds a whole download. Zero means no timeout.
	Timeout            time.Duration `env:"PIPERVOICE_HTTP_TIMEOUT"`
	UserAgent          string        `env:"PIPERVOICE_USER_AGENT"          envDefault:"pipervoice"`
	DownloadsPerMinute int           `env:"PIPERVOICE_DOWNLOADS_PER_MINUTE" envDefault:"30"`
}

// LoadHTTPConfig reads HTTPConfig from the environment.
func LoadHTTPConfig() (HTTPConfig, error) {
	cfg, err := env.ParseAs[HTTPConfig]()
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("failed to read HTTP settings: %w", err)
	}
	return cfg, nil
}

// HTTPFetcher downloads artifacts over HTTP(S), pacing requests so that a
// bulk install does not hammer the registry.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewHTTPFetcher creates a fetcher. A nil logger uses the default logger.
func NewHTTPFetcher(cfg HTTPConfig, logger *log.Logger) *HTTPFetcher {
	if logger == nil {
		logger = log.Default().WithPrefix("fetch")
	}

	limit := rate.Inf
	if cfg.DownloadsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.DownloadsPerMinute))
	}

	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, w io.Writer) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: %s", ErrBadStatus, url, resp.Status)
	}

	total := "unknown size"
	if resp.ContentLength > 0 {
		total = humanize.Bytes(uint64(resp.ContentLength))
	}
	f.logger.Info("Downloading", "host", resp.Request.URL.Host, "size", total)

	start := time.Now()
	pw := &progressWriter{w: w, size: resp.ContentLength, logger: f.logger}
	n, err := io.Copy(pw, resp.Body)
	if err != nil {
		return fmt.Errorf("download interrupted after %s: %w", humanize.Bytes(uint64(n)), err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("short download: got %d of %d bytes", n, resp.ContentLength)
	}

	f.logger.Debug("Download complete",
		"bytes", humanize.Bytes(uint64(n)),
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

// progressWriter logs at every quarter of a download of known size.
type progressWriter struct {
	w       io.Writer
	size    int64
	written int64
	step    int64
	logger  *log.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)

	if p.size > 0 {
		if step := p.written * 4 / p.size; step > p.step && step < 4 {
			p.step = step
			p.logger.Debug("Download progress",
				"done", humanize.Bytes(uint64(p.written)),
				"of", humanize.Bytes(uint64(p.size)))
		}
	}
	return n, err
}
