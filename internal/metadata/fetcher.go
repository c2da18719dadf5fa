// file: internal/metadata/fetcher.go
// version: 1.0.0
// guid: 98a629cb-28f4-48f8-aae4-83d029688be4

package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jdfalk/music-catalog/internal/metrics"
	"github.com/sony/gobreaker"
)

// FetcherOptions configures a Fetcher. Zero values fall back to defaults.
type FetcherOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	TempDir      string
	// Progress, when set, is called once per download with the advertised
	// content length (-1 when unknown); the returned writer sees every byte.
	Progress func(total int64) io.Writer
}

const (
	defaultDownloadTimeout = 30 * time.Second
	defaultMaxDownload     = 100 << 20
)

// Fetcher streams remote files to transient artifacts.
type Fetcher struct {
	client   *retryablehttp.Client
	timeout  time.Duration
	maxBytes int64
	tempDir  string
	progress func(total int64) io.Writer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFetcher creates a Fetcher with retry and a per-host circuit breaker.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultDownloadTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxDownload
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 200 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 2 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil
	// Hand the final response back so non-2xx statuses surface with their code.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{
		client:   client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		tempDir:  opts.TempDir,
		progress: opts.Progress,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch downloads rawURL into a new artifact. Every failure is a
// *DownloadError and leaves nothing on disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Artifact, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}

	result, err := f.breakerFor(u.Host).Execute(func() (interface{}, error) {
		return f.download(ctx, rawURL)
	})
	if err != nil {
		var de *DownloadError
		if errors.As(err, &de) {
			return nil, de
		}
		// gobreaker.ErrOpenState / ErrTooManyRequests
		return nil, &DownloadError{URL: rawURL, Err: fmt.Errorf("host %s unavailable: %w", u.Host, err)}
	}
	return result.(*Artifact), nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[WARN] Download of %s returned status %d", rawURL, resp.StatusCode)
		return nil, &DownloadError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	file, artifact, err := createArtifact(f.tempDir, downloadPattern)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}

	var w io.Writer = file
	if f.progress != nil {
		if pw := f.progress(resp.ContentLength); pw != nil {
			w = io.MultiWriter(file, pw)
		}
	}

	// Read one byte past the cap so an oversized body is detectable.
	n, err := io.Copy(w, io.LimitReader(resp.Body, f.maxBytes+1))
	closeErr := file.Close()
	if err == nil && n > f.maxBytes {
		err = fmt.Errorf("response exceeds %d bytes", f.maxBytes)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := artifact.Remove(); rmErr != nil {
			log.Printf("[WARN] Failed to remove partial download %s: %v", artifact.Path, rmErr)
		}
		return nil, &DownloadError{URL: rawURL, Err: err}
	}

	metrics.AddDownloadBytes(n)
	artifact.Size = n
	return artifact, nil
}

func (f *Fetcher) breakerFor(host string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fetch:" + host,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: isHealthyHostResult,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[WARN] Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	f.breakers[host] = cb
	return cb
}

// isHealthyHostResult keeps client-side problems (4xx, caller cancellation)
// from tripping the breaker.
func isHealthyHostResult(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var de *DownloadError
	if errors.As(err, &de) && de.StatusCode >= 400 && de.StatusCode < 500 {
		return true
	}
	return false
}
