// file: internal/metadata/fixtures_test.go
// version: 1.1.0
// guid: 8ba469ad-248c-4bea-bc85-5673b72a989b

package metadata

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/bogem/id3v2"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/stretchr/testify/require"
)

// mp3Frames returns n silent MPEG-1 Layer III frames (128 kbps, 44.1 kHz).
func mp3Frames(n int) []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	return bytes.Repeat(frame, n)
}

// Container headers followed by bytes no tag reader can parse. The ID3 header
// announces a TIT2 frame longer than the rest of the file.
const (
	corruptOggHeader = "OggS\x00\x02"
	corruptID3Header = "ID3\x04\x00\x00\x00\x10\x00\x00" + "TIT2\x00\x01\x00\x00\x00\x00"
)

// corruptPayload returns header followed by 12 KiB of text with no MPEG sync.
func corruptPayload(header string) []byte {
	return append([]byte(header), bytes.Repeat([]byte("garbage!"), 1536)...)
}

// pngImage returns a tiny valid PNG.
func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// id3MP3 builds an MP3 with an ID3v2.4 tag. Empty fields are omitted.
func id3MP3(t *testing.T, title, artist, year string, cover []byte) []byte {
	t.Helper()
	tag := id3v2.NewEmptyTag()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}
	if year != "" {
		tag.AddTextFrame("TDRC", tag.DefaultEncoding(), year)
	}
	if cover != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/png",
			PictureType: id3v2.PTFrontCover,
			Description: "Front",
			Picture:     cover,
		})
	}

	var buf bytes.Buffer
	_, err := tag.WriteTo(&buf)
	require.NoError(t, err)
	buf.Write(mp3Frames(20))
	return buf.Bytes()
}

// streamInfo is a 44.1 kHz, stereo, 16-bit STREAMINFO block body.
func streamInfo() []byte {
	si := make([]byte, 34)
	si[0], si[1] = 0x10, 0x00
	si[2], si[3] = 0x10, 0x00
	si[10], si[11], si[12], si[13] = 0x0A, 0xC4, 0x42, 0xF0
	return si
}

// flacFile builds a metadata-only FLAC stream with vorbis comments and an
// optional picture block.
func flacFile(t *testing.T, title, artist, date string, cover []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("fLaC")

	si := flac.MetaDataBlock{Type: flac.StreamInfo, Data: streamInfo()}
	buf.Write(si.Marshal(false))

	cmt := flacvorbis.New()
	for field, value := range map[string]string{
		flacvorbis.FIELD_TITLE:  title,
		flacvorbis.FIELD_ARTIST: artist,
		flacvorbis.FIELD_DATE:   date,
	} {
		if value != "" {
			require.NoError(t, cmt.Add(field, value))
		}
	}
	cmtBlock := cmt.Marshal()
	buf.Write(cmtBlock.Marshal(cover == nil))

	if cover != nil {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front", cover, "image/png")
		require.NoError(t, err)
		picBlock := pic.Marshal()
		buf.Write(picBlock.Marshal(true))
	}
	return buf.Bytes()
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// audioServer serves fixed payloads by path and counts requests.
type audioServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newAudioServer(t *testing.T, files map[string][]byte) *audioServer {
	t.Helper()
	s := &audioServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		switch r.URL.Path {
		case "/missing.mp3":
			http.NotFound(w, r)
			return
		case "/broken.mp3":
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

// assertEmptyDir fails when dir still holds any file.
func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Empty(t, names, "leftover temporary files in %s", dir)
}
