// file: internal/metadata/errors.go
// version: 1.0.0
// guid: b9ac9c6c-c87e-4220-8709-e1c75324434d

package metadata

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure class of the extraction pipeline. Typed
// errors below match them with errors.Is.
var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrDownload        = errors.New("download failed")
	ErrUnreadableAudio = errors.New("unreadable audio")
)

// Kind classifies an ExtractionError.
type Kind string

const (
	KindInvalidURL      Kind = "invalid_url"
	KindDownload        Kind = "download"
	KindUnreadableAudio Kind = "unreadable_audio"
)

// InvalidURLError reports a URL rejected before any network access.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}

func (e *InvalidURLError) Is(target error) bool { return target == ErrInvalidURL }

// DownloadError reports a transport failure or a non-success response.
// StatusCode is zero when no response was received.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error        { return e.Err }
func (e *DownloadError) Is(target error) bool { return target == ErrDownload }

// UnreadableAudioError reports content that is not a parseable audio container.
type UnreadableAudioError struct {
	Path     string
	Detected string // MIME type sniffed from content, if any
	Err      error
}

func (e *UnreadableAudioError) Error() string {
	if e.Detected != "" {
		return fmt.Sprintf("unreadable audio %s: detected %s", e.Path, e.Detected)
	}
	return fmt.Sprintf("unreadable audio %s: %v", e.Path, e.Err)
}

func (e *UnreadableAudioError) Unwrap() error        { return e.Err }
func (e *UnreadableAudioError) Is(target error) bool { return target == ErrUnreadableAudio }

// ExtractionError is the single error type returned by Extractor.Extract.
type ExtractionError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract metadata (%s): %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// KindOf returns the Kind of err when it is (or wraps) an ExtractionError.
func KindOf(err error) (Kind, bool) {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

func newExtractionError(url string, err error) *ExtractionError {
	kind := KindDownload
	switch {
	case errors.Is(err, ErrInvalidURL):
		kind = KindInvalidURL
	case errors.Is(err, ErrUnreadableAudio):
		kind = KindUnreadableAudio
	}
	return &ExtractionError{Kind: kind, URL: url, Err: err}
}
