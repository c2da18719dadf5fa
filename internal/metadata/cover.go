// file: internal/metadata/cover.go
// version: 2.0.0
// guid: 4efaa7b8-e29a-47f3-84f7-39b46bfc9a01

package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/dhowden/tag"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
)

// embeddedPicture is a cover image pulled out of a container.
type embeddedPicture struct {
	MIME string
	Data []byte
}

// CoverExtractor writes embedded cover art to a transient artifact.
type CoverExtractor struct {
	tempDir string
}

// NewCoverExtractor creates a CoverExtractor writing into tempDir (OS default
// when empty).
func NewCoverExtractor(tempDir string) *CoverExtractor {
	return &CoverExtractor{tempDir: tempDir}
}

// Extract returns an artifact holding the first embedded picture of path, or
// nil when the container has none or its scheme is unsupported.
func (c *CoverExtractor) Extract(path, format string) (*Artifact, error) {
	var (
		pic *embeddedPicture
		err error
	)
	switch {
	case format == mimeMPEG:
		pic, err = readID3Picture(path)
	case format == mimeFLAC:
		pic, err = readFLACPicture(path)
	case strings.Contains(format, "mp4"), strings.Contains(format, "m4a"), strings.Contains(format, "ogg"):
		pic, err = readTagPicture(path)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cover from %s: %w", path, err)
	}
	if pic == nil || len(pic.Data) == 0 {
		return nil, nil
	}

	f, artifact, err := createArtifact(c.tempDir, coverPattern+extensionFromContentType(pic.MIME))
	if err != nil {
		return nil, err
	}
	_, werr := f.Write(pic.Data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = artifact.Remove()
		return nil, fmt.Errorf("write cover: %w", werr)
	}
	artifact.Size = int64(len(pic.Data))
	return artifact, nil
}

// readID3Picture returns the front cover APIC frame, else the first one.
func readID3Picture(path string) (*embeddedPicture, error) {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Attached picture"}})
	if err != nil {
		return nil, err
	}
	defer t.Close()

	var first *id3v2.PictureFrame
	for _, f := range t.GetFrames(t.CommonID("Attached picture")) {
		pf, ok := f.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		if pf.PictureType == id3v2.PTFrontCover {
			return &embeddedPicture{MIME: pf.MimeType, Data: pf.Picture}, nil
		}
		if first == nil {
			first = &pf
		}
	}
	if first == nil {
		return nil, nil
	}
	return &embeddedPicture{MIME: first.MimeType, Data: first.Picture}, nil
}

func readFLACPicture(path string) (*embeddedPicture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := flac.ParseMetadata(f)
	if err != nil {
		return nil, err
	}
	for _, meta := range file.Meta {
		if meta.Type != flac.Picture {
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil, err
		}
		return &embeddedPicture{MIME: pic.MIME, Data: pic.ImageData}, nil
	}
	return nil, nil
}

func readTagPicture(path string) (*embeddedPicture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := m.Picture()
	if p == nil {
		return nil, nil
	}
	mime := p.MIMEType
	if mime == "" {
		mime = p.Ext
	}
	return &embeddedPicture{MIME: mime, Data: p.Data}, nil
}

func extensionFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
