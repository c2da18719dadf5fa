// file: internal/server/extract_handler.go
// version: 1.1.0
// guid: c7594c01-a497-448b-9d56-49aa1bc83bcf

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/music-catalog/internal/metadata"
)

func (s *Server) extractMetadata(c *gin.Context) {
	ol := s.opLogger(c, "extractMetadata")

	var req ExtractRequest
	err := c.ShouldBindJSON(&req)
	if isBodyTooLarge(err) {
		RespondWithError(c, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
		return
	}
	if err != nil || strings.TrimSpace(req.URL) == "" {
		RespondWithBadRequest(c, "URL is required")
		return
	}
	ol.AddDetail("url", req.URL)

	md, err := s.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		if kind, _ := metadata.KindOf(err); kind == metadata.KindInvalidURL {
			RespondWithError(c, http.StatusBadRequest, "Invalid URL format", "INVALID_URL")
			return
		}
		ol.LogError(http.StatusInternalServerError, err)
		RespondWithInternalError(c, "Failed to extract metadata from the audio file")
		return
	}

	ol.AddDetail("cover", md.CoverArtPresent)
	ol.LogSuccess(http.StatusOK)
	c.JSON(http.StatusOK, ExtractResponse{
		Title:           md.Title,
		Singer:          md.Artist,
		ImageURL:        s.cfg.Extract.PlaceholderImageURL,
		Year:            md.Year,
		CoverArtPresent: md.CoverArtPresent,
	})
}
