// file: internal/server/static_embed.go
// version: 2.0.0
// guid: 1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d

package server

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed web/dashboard.html
var dashboardHTML []byte

// setupStaticFiles serves the dashboard and a JSON 404 for everything else
func (s *Server) setupStaticFiles() {
	s.router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
	})

	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			RespondWithError(c, http.StatusNotFound, "endpoint not found", "NOT_FOUND")
			return
		}
		RespondWithError(c, http.StatusNotFound, "not found", "NOT_FOUND")
	})
}
