// file: internal/server/songs_handlers.go
// version: 1.0.0
// guid: d8280416-51f8-4634-9f08-31f0d7d3f576

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/music-catalog/internal/database"
	"github.com/jdfalk/music-catalog/internal/logger"
	"github.com/jdfalk/music-catalog/internal/metrics"
	"github.com/jdfalk/music-catalog/internal/server/middleware"
)

func (s *Server) opLogger(c *gin.Context, handler string) *logger.OperationLogger {
	return logger.NewOperationLogger(handler, c.Request.Method, c.FullPath(), middleware.GetRequestID(c))
}

// readSongPayload decodes a JSON object body. It responds and returns false
// when the body is missing, malformed or empty.
func readSongPayload(c *gin.Context) (map[string]json.RawMessage, bool) {
	var data map[string]json.RawMessage
	if err := c.ShouldBindJSON(&data); err != nil {
		if isBodyTooLarge(err) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
			return nil, false
		}
		RespondWithBadRequest(c, "No data provided")
		return nil, false
	}
	if len(data) == 0 {
		RespondWithBadRequest(c, "No data provided")
		return nil, false
	}
	return data, true
}

// updateSongGauge re-counts songs after a write.
func (s *Server) updateSongGauge(c *gin.Context) {
	if n, err := s.store.CountSongs(c.Request.Context()); err == nil {
		metrics.SetSongs(n)
	}
}

func (s *Server) listSongs(c *gin.Context) {
	songs, err := s.store.ListSongs(c.Request.Context())
	if err != nil {
		s.opLogger(c, "listSongs").LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "An error occurred")
		return
	}
	if songs == nil {
		songs = []database.Song{}
	}
	c.JSON(http.StatusOK, songs)
}

func (s *Server) searchSongs(c *gin.Context) {
	query := database.SongQuery{
		Text:  c.Query("q"),
		Field: database.ParseSearchField(c.DefaultQuery("field", string(database.SearchAll))),
	}
	songs, err := s.store.SearchSongs(c.Request.Context(), query)
	if errors.Is(err, database.ErrInvalidQuery) {
		RespondWithValidationError(c, invalidYear())
		return
	}
	if err != nil {
		s.opLogger(c, "searchSongs").LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "An error occurred")
		return
	}
	if songs == nil {
		songs = []database.Song{}
	}
	c.JSON(http.StatusOK, songs)
}

func (s *Server) getSong(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		RespondWithNotFound(c, "Song")
		return
	}
	song, err := s.store.GetSong(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		RespondWithNotFound(c, "Song")
		return
	}
	if err != nil {
		s.opLogger(c, "getSong").LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "An error occurred")
		return
	}
	c.JSON(http.StatusOK, song)
}

func (s *Server) createSong(c *gin.Context) {
	ol := s.opLogger(c, "createSong")

	data, ok := readSongPayload(c)
	if !ok {
		return
	}
	song, err := ParseNewSong(data)
	if err != nil {
		var ve ValidationError
		if errors.As(err, &ve) {
			RespondWithValidationError(c, ve)
			return
		}
		RespondWithBadRequest(c, err.Error())
		return
	}

	created, err := s.store.CreateSong(c.Request.Context(), song)
	if err != nil {
		ol.LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "Failed to add song")
		return
	}

	metrics.IncSongOperation("create")
	s.updateSongGauge(c)
	ol.SetResourceID(strconv.Itoa(created.ID))
	ol.AddDetail("title", created.Title)
	ol.LogSuccess(http.StatusCreated)
	c.JSON(http.StatusCreated, CreateResponse{Message: "Song added successfully", ID: created.ID})
}

func (s *Server) updateSong(c *gin.Context) {
	ol := s.opLogger(c, "updateSong")

	id, ok := parseIDParam(c, "id")
	if !ok {
		RespondWithNotFound(c, "Song")
		return
	}
	ol.SetResourceID(strconv.Itoa(id))

	data, ok := readSongPayload(c)
	if !ok {
		return
	}
	patch, err := ParseSongPatch(data)
	if err != nil {
		var ve ValidationError
		if errors.As(err, &ve) {
			RespondWithValidationError(c, ve)
			return
		}
		RespondWithBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if patch.Empty() {
		_, err = s.store.GetSong(ctx, id)
	} else {
		_, err = s.store.UpdateSong(ctx, id, patch)
	}
	if errors.Is(err, database.ErrNotFound) {
		RespondWithNotFound(c, "Song")
		return
	}
	if err != nil {
		ol.LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "Failed to update song")
		return
	}

	metrics.IncSongOperation("update")
	ol.LogSuccess(http.StatusOK)
	RespondWithMessage(c, http.StatusOK, "Song updated successfully")
}

func (s *Server) deleteSong(c *gin.Context) {
	ol := s.opLogger(c, "deleteSong")

	id, ok := parseIDParam(c, "id")
	if !ok {
		RespondWithNotFound(c, "Song")
		return
	}
	ol.SetResourceID(strconv.Itoa(id))

	err := s.store.DeleteSong(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		RespondWithNotFound(c, "Song")
		return
	}
	if err != nil {
		ol.LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "Failed to delete song")
		return
	}

	metrics.IncSongOperation("delete")
	s.updateSongGauge(c)
	ol.LogSuccess(http.StatusOK)
	RespondWithMessage(c, http.StatusOK, "Song deleted successfully")
}
