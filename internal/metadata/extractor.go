// file: internal/metadata/extractor.go
// version: 1.1.0
// guid: 12f2de11-fe92-48d7-98dc-61bda5054e61

package metadata

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jdfalk/music-catalog/internal/cache"
	"github.com/jdfalk/music-catalog/internal/config"
	"github.com/jdfalk/music-catalog/internal/logger"
	"github.com/jdfalk/music-catalog/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Field defaults used when a tag is absent.
const (
	DefaultTitle  = "Unknown Title"
	DefaultArtist = "Unknown Artist"
)

// ExtractedMetadata is the result of a successful extraction. Every field is
// always populated.
type ExtractedMetadata struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Year            int    `json:"year"`
	CoverArtPresent bool   `json:"cover_art_present"`
}

// Downloader fetches a remote URL into a transient artifact.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (*Artifact, error)
}

// TagParser reads tags from a file whose container format is known. It
// returns *UnreadableAudioError when the file cannot be parsed at all.
type TagParser interface {
	ReadFormat(path, format string) (TagResult, error)
}

// CoverLocator pulls embedded cover art out of a file.
type CoverLocator interface {
	Extract(path, format string) (*Artifact, error)
}

// Extractor runs the fetch, parse and assemble pipeline for one URL at a time.
// It is safe for concurrent use; each call owns its own artifacts.
type Extractor struct {
	fetcher Downloader
	tags    TagParser
	cover   CoverLocator
	results *cache.Cache[ExtractedMetadata]
	now     func() time.Time
}

type extractorOptions struct {
	fetcherOpts FetcherOptions
	fetcher     Downloader
	tags        TagParser
	cover       CoverLocator
	cacheTTL    time.Duration
	now         func() time.Time
}

// Option customizes an Extractor.
type Option func(*extractorOptions)

// WithFetcherOptions sets the options of the default Fetcher.
func WithFetcherOptions(opts FetcherOptions) Option {
	return func(o *extractorOptions) {
		progress := o.fetcherOpts.Progress
		o.fetcherOpts = opts
		if opts.Progress == nil {
			o.fetcherOpts.Progress = progress
		}
	}
}

// WithProgress streams every downloaded byte to the writer returned by fn.
func WithProgress(fn func(total int64) io.Writer) Option {
	return func(o *extractorOptions) { o.fetcherOpts.Progress = fn }
}

// WithDownloader replaces the default Fetcher.
func WithDownloader(d Downloader) Option {
	return func(o *extractorOptions) { o.fetcher = d }
}

// WithTagParser replaces the default taglib/raw-frame reader.
func WithTagParser(p TagParser) Option {
	return func(o *extractorOptions) { o.tags = p }
}

// WithCoverLocator replaces the default cover extractor.
func WithCoverLocator(c CoverLocator) Option {
	return func(o *extractorOptions) { o.cover = c }
}

// WithCacheTTL caches successful results per URL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *extractorOptions) { o.cacheTTL = ttl }
}

// WithClock sets the clock used for the default year.
func WithClock(now func() time.Time) Option {
	return func(o *extractorOptions) { o.now = now }
}

// NewExtractor builds an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	o := extractorOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = NewFetcher(o.fetcherOpts)
	}
	if o.tags == nil {
		o.tags = NewTagReader()
	}
	if o.cover == nil {
		o.cover = NewCoverExtractor(o.fetcherOpts.TempDir)
	}
	return &Extractor{
		fetcher: o.fetcher,
		tags:    o.tags,
		cover:   o.cover,
		results: cache.New[ExtractedMetadata](o.cacheTTL),
		now:     o.now,
	}
}

// NewExtractorFromConfig builds an Extractor from the extract config section.
// Later options override the config.
func NewExtractorFromConfig(cfg config.ExtractConfig, opts ...Option) *Extractor {
	base := []Option{
		WithFetcherOptions(FetcherOptions{
			Timeout:  cfg.DownloadTimeout,
			MaxBytes: cfg.MaxDownloadBytes,
			RetryMax: cfg.RetryMax,
			TempDir:  cfg.TempDir,
		}),
		WithCacheTTL(cfg.CacheTTL),
	}
	return NewExtractor(append(base, opts...)...)
}

// ValidateURL accepts only absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &InvalidURLError{URL: rawURL, Reason: "empty"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidURLError{URL: rawURL, Reason: err.Error()}
	}
	if !u.IsAbs() {
		return &InvalidURLError{URL: rawURL, Reason: "missing scheme"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidURLError{URL: rawURL, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &InvalidURLError{URL: rawURL, Reason: "missing host"}
	}
	return nil
}

// Extract downloads rawURL, reads its tags and embedded cover, and returns the
// assembled metadata. Every temporary file is removed before it returns.
// Errors are always *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (ExtractedMetadata, error) {
	start := time.Now()
	sl := logger.ServiceLoggerFromContext(ctx, "Extractor")

	if err := ValidateURL(rawURL); err != nil {
		return e.fail(sl, start, "validate", rawURL, err)
	}
	if md, ok := e.results.Get(rawURL); ok {
		metrics.IncExtraction(metrics.ResultCached)
		sl.LogDebug("cache", "hit for "+rawURL)
		return md, nil
	}

	sl.LogOperation("fetching", map[string]any{"url": rawURL})
	audio, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return e.fail(sl, start, "fetching", rawURL, err)
	}
	defer removeArtifact(sl, audio)

	sl.LogOperation("parsing", map[string]any{"bytes": audio.Size})
	format, err := DetectFormat(audio.Path)
	if err != nil {
		return e.fail(sl, start, "parsing", rawURL, err)
	}

	var (
		tags  TagResult
		cover *Artifact
		g     errgroup.Group
	)
	g.Go(func() error {
		var err error
		tags, err = e.tags.ReadFormat(audio.Path, format)
		return err
	})
	g.Go(func() error {
		cover = e.locateCover(sl, audio.Path, format)
		return nil
	})
	err = g.Wait()
	defer removeArtifact(sl, cover)
	if err != nil {
		return e.fail(sl, start, "parsing", rawURL, err)
	}

	sl.LogOperation("assembling", map[string]any{"format": format})
	md := e.assemble(tags, cover != nil)
	metrics.ObserveCoverArt(md.CoverArtPresent)
	metrics.IncExtraction(metrics.ResultSuccess)
	metrics.ObserveExtractionDuration(time.Since(start))
	e.results.Set(rawURL, md)

	sl.LogOperation("done", map[string]any{
		"title":  md.Title,
		"artist": md.Artist,
		"year":   md.Year,
		"cover":  md.CoverArtPresent,
	})
	return md, nil
}

func (e *Extractor) assemble(tags TagResult, coverFound bool) ExtractedMetadata {
	md := ExtractedMetadata{
		Title:           tags.Title,
		Artist:          tags.Artist,
		Year:            tags.Year,
		CoverArtPresent: coverFound,
	}
	if md.Title == "" {
		md.Title = DefaultTitle
	}
	if md.Artist == "" {
		md.Artist = DefaultArtist
	}
	if md.Year <= 0 {
		md.Year = e.now().Year()
	}
	return md
}

// locateCover never fails the extraction; errors and panics mean no cover.
func (e *Extractor) locateCover(sl *logger.ServiceLogger, path, format string) (art *Artifact) {
	defer func() {
		if p := recover(); p != nil {
			sl.LogWarning("cover", fmt.Errorf("panic: %v", p))
			art = nil
		}
	}()
	art, err := e.cover.Extract(path, format)
	if err != nil {
		sl.LogWarning("cover", err)
		removeArtifact(sl, art)
		return nil
	}
	return art
}

func (e *Extractor) fail(sl *logger.ServiceLogger, start time.Time, stage, rawURL string, err error) (ExtractedMetadata, error) {
	ee := newExtractionError(rawURL, err)
	metrics.ObserveExtractionDuration(time.Since(start))
	switch ee.Kind {
	case KindInvalidURL:
		metrics.IncExtraction(metrics.ResultInvalidURL)
	case KindUnreadableAudio:
		metrics.IncExtraction(metrics.ResultUnreadable)
	default:
		metrics.IncExtraction(metrics.ResultDownload)
	}
	sl.LogError(stage+" -> failed", ee)
	return ExtractedMetadata{}, ee
}

func removeArtifact(sl *logger.ServiceLogger, a *Artifact) {
	if err := a.Remove(); err != nil {
		sl.LogWarning("cleanup", err)
	}
}
