// Package artifact downloads the classifier model before the service starts.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/oralscan/pkg/logger"
)

// ErrDownload is returned when the artifact could not be fetched.
var ErrDownload = errors.New("model download failed")

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithBackOff sets the retry schedule factory; each Fetch gets a fresh schedule.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		if newBackOff != nil {
			f.newBackOff = newBackOff
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// Fetcher downloads artifacts over HTTP with exponential backoff.
type Fetcher struct {
	client     *http.Client
	newBackOff func() backoff.BackOff
	logger     logger.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 10 * time.Minute},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
		logger: logger.Get().Named("artifact"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to dest. The file is written next to dest and renamed
// into place, so dest is either the previous file or the complete new one.
// 5xx responses and transport errors are retried until ctx ends; 4xx is final.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	attempt := 0
	op := func() error {
		attempt++
		return f.fetchOnce(ctx, url, dest)
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn(ctx, "model download attempt failed",
			logger.String("url", url),
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", wait),
			logger.Error(err),
		)
	}

	start := time.Now()
	if err := backoff.RetryNotify(op, backoff.WithContext(f.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, url, err)
	}
	f.logger.Info(ctx, "model downloaded",
		logger.String("path", dest),
		logger.Int("attempts", attempt),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("unexpected status %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("unexpected status %s", resp.Status))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return backoff.Permanent(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return backoff.Permanent(err)
	}
	if err := tmp.Close(); err != nil {
		return backoff.Permanent(err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return backoff.Permanent(err)
	}
	committed = true
	return nil
}
