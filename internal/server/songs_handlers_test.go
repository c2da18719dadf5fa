// file: internal/server/songs_handlers_test.go
// version: 1.0.0
// guid: 53f48217-5874-412e-9d18-740f30eb3282

package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/music-catalog/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSong() gin.H {
	return gin.H{
		"title":     "Bohemian Rhapsody",
		"singer":    "Queen",
		"song_url":  "https://example.com/br.mp3",
		"image_url": "https://example.com/br.jpg",
		"year":      1975,
	}
}

func createSong(t *testing.T, env *testEnv, body gin.H) int {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/songs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[CreateResponse](t, w).ID
}

func TestCreateSong(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/songs", validSong())
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[CreateResponse](t, w)
	assert.Equal(t, "Song added successfully", resp.Message)
	assert.Positive(t, resp.ID)

	song, err := env.store.GetSong(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Queen", song.Singer)
	assert.Equal(t, 1975, song.Year)
}

func TestCreateSongYearAsString(t *testing.T) {
	env := newTestEnv(t, nil)
	body := validSong()
	body["year"] = "1980"
	id := createSong(t, env, body)

	song, err := env.store.GetSong(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1980, song.Year)
}

func TestCreateSongValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("no data", func(t *testing.T) {
		for _, body := range []any{nil, "", "not json", gin.H{}, "[1,2]"} {
			w := env.do(t, http.MethodPost, "/api/songs", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "No data provided", errorOf(t, w))
		}
	})

	t.Run("missing fields reported in order", func(t *testing.T) {
		for _, field := range []string{"title", "singer", "song_url", "image_url", "year"} {
			body := validSong()
			delete(body, field)
			w := env.do(t, http.MethodPost, "/api/songs", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Missing required field: "+field, errorOf(t, w))
		}

		only := gin.H{"year": 2000}
		w := env.do(t, http.MethodPost, "/api/songs", only)
		assert.Equal(t, "Missing required field: title", errorOf(t, w))
	})

	t.Run("invalid year", func(t *testing.T) {
		for _, year := range []any{"abc", 1999.5, true, nil, gin.H{}} {
			body := validSong()
			body["year"] = year
			w := env.do(t, http.MethodPost, "/api/songs", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid year", errorOf(t, w))
		}
	})

	t.Run("non string field", func(t *testing.T) {
		body := validSong()
		body["title"] = 12
		w := env.do(t, http.MethodPost, "/api/songs", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid value for field: title", errorOf(t, w))
	})

	n, err := env.store.CountSongs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListAndGetSongs(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/songs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	first := createSong(t, env, validSong())
	second := validSong()
	second["title"] = "Heroes"
	second["singer"] = "David Bowie"
	second["year"] = 1977
	secondID := createSong(t, env, second)

	w = env.do(t, http.MethodGet, "/api/songs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	songs := decode[[]database.Song](t, w)
	require.Len(t, songs, 2)
	assert.Equal(t, first, songs[0].ID)
	assert.Equal(t, secondID, songs[1].ID)

	w = env.do(t, http.MethodGet, "/api/songs/"+strconv.Itoa(secondID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Heroes", decode[database.Song](t, w).Title)

	for _, path := range []string{"/api/songs/9999", "/api/songs/abc", "/api/songs/0"} {
		w = env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Song not found", errorOf(t, w))
	}
}

func TestUpdateSong(t *testing.T) {
	env := newTestEnv(t, nil)
	id := createSong(t, env, validSong())
	path := "/api/songs/" + strconv.Itoa(id)

	w := env.do(t, http.MethodPut, path, gin.H{"title": "New Title", "year": "2001"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Song updated successfully", decode[MessageResponse](t, w).Message)

	song, err := env.store.GetSong(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "New Title", song.Title)
	assert.Equal(t, "Queen", song.Singer)
	assert.Equal(t, 2001, song.Year)

	// Unknown keys are accepted and change nothing.
	w = env.do(t, http.MethodPut, path, gin.H{"genre": "rock"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No data provided", errorOf(t, w))

	w = env.do(t, http.MethodPut, path, gin.H{"year": "soon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid year", errorOf(t, w))

	w = env.do(t, http.MethodPut, "/api/songs/9999", gin.H{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/songs/9999", gin.H{"genre": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSong(t *testing.T) {
	env := newTestEnv(t, nil)
	id := createSong(t, env, validSong())
	path := "/api/songs/" + strconv.Itoa(id)

	w := env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Song deleted successfully", decode[MessageResponse](t, w).Message)

	w = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchSongs(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, s := range []gin.H{
		{"title": "Bohemian Rhapsody", "singer": "Queen", "year": 1975},
		{"title": "Under Pressure", "singer": "Queen & David Bowie", "year": 1981},
		{"title": "Heroes", "singer": "David Bowie", "year": 1977},
	} {
		s["song_url"] = "https://example.com/s.mp3"
		s["image_url"] = "https://example.com/s.jpg"
		createSong(t, env, s)
	}

	titles := func(query string) []string {
		w := env.do(t, http.MethodGet, "/api/songs/search?"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out []string
		for _, s := range decode[[]database.Song](t, w) {
			out = append(out, s.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Under Pressure", "Heroes"}, titles("q=BOWIE"))
	assert.Equal(t, []string{"Heroes"}, titles("q=her&field=title"))
	assert.Equal(t, []string{"Bohemian Rhapsody", "Under Pressure"}, titles("q=queen&field=singer"))
	assert.Equal(t, []string{"Under Pressure"}, titles("q=1981&field=year"))
	assert.Equal(t, []string{"Bohemian Rhapsody", "Heroes"}, titles("q=197"))
	assert.Len(t, titles("q="), 3)

	w := env.do(t, http.MethodGet, "/api/songs/search?q=nineteen&field=year", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid year", errorOf(t, w))

	w = env.do(t, http.MethodGet, "/api/songs/search?q=zzz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestRequestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	body := validSong()
	body["title"] = strings.Repeat("x", int(env.cfg.Server.JSONBodyLimit)+1)
	w := env.do(t, http.MethodPost, "/api/songs", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
