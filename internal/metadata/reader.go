// file: internal/metadata/reader.go
// version: 1.1.0
// guid: 64218bea-074f-400b-b9a7-7626101e225a

package metadata

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	taglib "go.senan.xyz/taglib"
)

// TagResult holds the fields read from an audio file. Zero values mean absent.
type TagResult struct {
	Title  string
	Artist string
	Year   int
	Format string
}

func (r TagResult) complete() bool {
	return r.Title != "" && r.Artist != "" && r.Year != 0
}

// fill copies fields from other into r only where r is still empty.
func (r *TagResult) fill(other TagResult) {
	if r.Title == "" {
		r.Title = other.Title
	}
	if r.Artist == "" {
		r.Artist = other.Artist
	}
	if r.Year == 0 {
		r.Year = other.Year
	}
}

// TagStrategy reads tags from a file of a known container format.
type TagStrategy interface {
	Name() string
	ReadTags(path, format string) (TagResult, error)
}

// TagReader runs its strategies in order; later strategies only fill fields
// earlier ones left empty.
type TagReader struct {
	strategies []TagStrategy
}

// NewTagReader returns a reader using the given strategies, or the default
// taglib then raw-frame chain when none are given.
func NewTagReader(strategies ...TagStrategy) *TagReader {
	if len(strategies) == 0 {
		strategies = []TagStrategy{TaglibStrategy{}, RawFrameStrategy{}}
	}
	return &TagReader{strategies: strategies}
}

// Read sniffs the container of path and reads its tags. Extractor.Extract
// runs the same two steps, DetectFormat then ReadFormat, so it can look for
// cover art alongside the tag read.
func (r *TagReader) Read(path string) (TagResult, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return TagResult{}, err
	}
	return r.ReadFormat(path, format)
}

// ReadFormat reads tags from a file whose format is already known. A failing
// strategy is logged and skipped. When every strategy fails the file is
// reported as *UnreadableAudioError.
func (r *TagReader) ReadFormat(path, format string) (TagResult, error) {
	result := TagResult{Format: format}
	var errs []error
	readable := false
	for _, s := range r.strategies {
		if result.complete() {
			break
		}
		tags, err := runStrategy(s, path, format)
		if err != nil {
			log.Printf("[WARN] Tag strategy %s failed for %s: %v", s.Name(), path, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		readable = true
		result.fill(tags)
	}
	if !readable && len(errs) > 0 {
		return TagResult{}, &UnreadableAudioError{Path: path, Err: errors.Join(errs...)}
	}
	return result, nil
}

func runStrategy(s TagStrategy, path, format string) (res TagResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.ReadTags(path, format)
}

// TaglibStrategy reads normalized TagLib properties.
type TaglibStrategy struct{}

func (TaglibStrategy) Name() string { return "taglib" }

func (TaglibStrategy) ReadTags(path, _ string) (TagResult, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return TagResult{}, err
	}
	return TagResult{
		Title:  firstTag(tags[taglib.Title]),
		Artist: firstTag(tags[taglib.Artist]),
		Year:   parseYear(firstTag(tags[taglib.Date])),
	}, nil
}

// RawFrameStrategy reads container-specific frames directly.
type RawFrameStrategy struct{}

// frameKeys lists the raw keys for title, artist and year per tag format.
type frameKeys struct {
	title, artist, year []string
}

var rawFrames = map[tag.Format]frameKeys{
	tag.ID3v2_4: {[]string{"TIT2"}, []string{"TPE1"}, []string{"TDRC", "TYER"}},
	tag.ID3v2_3: {[]string{"TIT2"}, []string{"TPE1"}, []string{"TDRC", "TYER"}},
	tag.ID3v2_2: {[]string{"TT2"}, []string{"TP1"}, []string{"TYE"}},
	tag.VORBIS:  {[]string{"title"}, []string{"artist"}, []string{"date"}},
	tag.MP4:     {[]string{"\xa9nam", "©nam"}, []string{"\xa9ART", "©ART"}, []string{"\xa9day", "©day"}},
	tag.ID3v1:   {[]string{"title"}, []string{"artist"}, []string{"year"}},
}

func (RawFrameStrategy) Name() string { return "raw-frames" }

func (RawFrameStrategy) ReadTags(path, _ string) (TagResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return TagResult{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return TagResult{}, nil
	}
	if err != nil {
		return TagResult{}, err
	}

	keys, ok := rawFrames[m.Format()]
	if !ok {
		return TagResult{}, nil
	}
	raw := m.Raw()
	return TagResult{
		Title:  rawString(raw, keys.title),
		Artist: rawString(raw, keys.artist),
		Year:   parseYear(rawString(raw, keys.year)),
	}, nil
}

func rawString(raw map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstTag(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseYear takes the part of a date before the first '-'. Anything that is
// not a positive integer is no year.
func parseYear(s string) int {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "-")
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || year <= 0 {
		return 0
	}
	return year
}
