// file: internal/metadata/cover_test.go
// version: 2.0.0
// guid: c7bb7123-5dd3-4cdc-80b8-280483d3640a

package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverExtractorID3(t *testing.T) {
	img := pngImage(t)
	path := writeFixture(t, "song.mp3", id3MP3(t, "T", "A", "2020", img))
	dir := t.TempDir()

	art, err := NewCoverExtractor(dir).Extract(path, mimeMPEG)
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, dir, filepath.Dir(art.Path))
	assert.True(t, strings.HasSuffix(art.Path, ".png"))
	assert.Equal(t, int64(len(img)), art.Size)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, img, data)

	require.NoError(t, art.Remove())
	require.NoError(t, art.Remove())
	assertEmptyDir(t, dir)
}

func TestCoverExtractorFLAC(t *testing.T) {
	img := pngImage(t)
	path := writeFixture(t, "song.flac", flacFile(t, "T", "A", "2020", img))
	dir := t.TempDir()

	art, err := NewCoverExtractor(dir).Extract(path, mimeFLAC)
	require.NoError(t, err)
	require.NotNil(t, art)
	defer art.Remove()

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, img, data)
}

func TestCoverExtractorNoPicture(t *testing.T) {
	dir := t.TempDir()
	ce := NewCoverExtractor(dir)

	mp3 := writeFixture(t, "song.mp3", id3MP3(t, "T", "A", "2020", nil))
	art, err := ce.Extract(mp3, mimeMPEG)
	require.NoError(t, err)
	assert.Nil(t, art)

	fl := writeFixture(t, "song.flac", flacFile(t, "T", "A", "2020", nil))
	art, err = ce.Extract(fl, mimeFLAC)
	require.NoError(t, err)
	assert.Nil(t, art)

	art, err = ce.Extract(mp3, "audio/wav")
	require.NoError(t, err)
	assert.Nil(t, art)

	assertEmptyDir(t, dir)
}

func TestExtensionFromContentType(t *testing.T) {
	assert.Equal(t, ".png", extensionFromContentType("image/png"))
	assert.Equal(t, ".gif", extensionFromContentType("IMAGE/GIF"))
	assert.Equal(t, ".webp", extensionFromContentType("image/webp"))
	assert.Equal(t, ".jpg", extensionFromContentType("image/jpeg"))
	assert.Equal(t, ".jpg", extensionFromContentType(""))
}
