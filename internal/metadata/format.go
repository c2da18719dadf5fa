// file: internal/metadata/format.go
// version: 1.0.0
// guid: 1d8049d7-f05c-48f3-8b71-047a1507e7f9

package metadata

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Container MIME types the cover extractor knows how to read.
const (
	mimeMPEG = "audio/mpeg"
	mimeFLAC = "audio/flac"
)

// containers that carry audio without an audio/* MIME type
var audioContainers = []string{"application/ogg", "video/mp4", "audio/mp4"}

// DetectFormat sniffs the container format of path from its content and
// returns its MIME type. Content that is not a known audio container is an
// *UnreadableAudioError.
func DetectFormat(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", &UnreadableAudioError{Path: path, Err: err}
	}
	if !isAudio(mt) {
		return "", &UnreadableAudioError{Path: path, Detected: mt.String()}
	}
	return baseMIME(mt.String()), nil
}

func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
		for _, c := range audioContainers {
			if m.Is(c) {
				return true
			}
		}
	}
	return false
}

// baseMIME strips parameters such as "; charset=binary".
func baseMIME(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.ToLower(s))
}
