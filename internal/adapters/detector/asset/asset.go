// Package asset fetches the landmark model file once and caches it on disk.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okian/drowsywatch/pkg/logger"
	"github.com/okian/drowsywatch/pkg/metrics"
)

const (
	defaultRetries = 2
	defaultBackoff = time.Second
	defaultTimeout = 2 * time.Minute
)

// ErrAssetUnavailable is returned when no mirror produced the file.
var ErrAssetUnavailable = errors.New("model asset unavailable")

// Option configures Ensure.
type Option func(*fetcher)

type fetcher struct {
	client  *http.Client
	retries uint64
	backoff time.Duration
	log     logger.Logger
}

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRetries sets the number of extra attempts per mirror.
func WithRetries(n int) Option {
	return func(f *fetcher) {
		if n >= 0 {
			f.retries = uint64(n)
		}
	}
}

// WithBackoff sets the constant delay between attempts against one mirror.
func WithBackoff(d time.Duration) Option {
	return func(f *fetcher) {
		if d > 0 {
			f.backoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// Ensure makes sure path exists, downloading it from the first mirror that
// answers when it does not. Mirrors are tried in order.
func Ensure(ctx context.Context, path string, mirrors []string, opts ...Option) error {
	f := &fetcher{
		client:  &http.Client{Timeout: defaultTimeout},
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("asset")
	}

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f.log.Info(ctx, "model present",
			logger.String("path", path),
			logger.Float64("size_mb", float64(info.Size())/(1<<20)),
		)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	var lastErr error = errors.New("no mirrors configured")
	for i, url := range mirrors {
		f.log.Info(ctx, "downloading model",
			logger.String("url", url),
			logger.Int("mirror", i+1),
			logger.Int("mirrors", len(mirrors)),
		)
		b := retry.WithMaxRetries(f.retries, retry.NewConstant(f.backoff))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			return f.download(ctx, url, path)
		})
		if err == nil {
			metrics.RecordAssetDownload("ok")
			f.log.Info(ctx, "model downloaded", logger.String("path", path))
			return nil
		}
		metrics.RecordAssetDownload("error")
		f.log.Warn(ctx, "mirror failed", logger.String("url", url), logger.Error(err))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	f.log.Error(ctx, "could not download model; fetch it manually",
		logger.String("path", path),
		logger.String("mirrors", strings.Join(mirrors, " ")),
	)
	return fmt.Errorf("%w: %w", ErrAssetUnavailable, lastErr)
}

// download streams url into a temp file next to path and renames it into
// place once complete.
func (f *fetcher) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("mirror returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("mirror returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return retry.RetryableError(fmt.Errorf("write model: %w", err))
	}
	if n == 0 {
		return errors.New("mirror returned an empty body")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install model: %w", err)
	}
	return nil
}
