// file: internal/server/middleware/request_id_test.go
// version: 1.0.0
// guid: ef28b653-d7f2-449d-a1d1-f1fc3f20d72d

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/music-catalog/internal/logger"
	ulid "github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestIDRouter(seen *string, fromCtx *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		*seen = GetRequestID(c)
		*fromCtx = logger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestID_GeneratesULID(t *testing.T) {
	t.Parallel()

	var seen, fromCtx string
	router := requestIDRouter(&seen, &fromCtx)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))

	header := resp.Header().Get(RequestIDHeader)
	_, err := ulid.ParseStrict(header)
	require.NoError(t, err)
	assert.Equal(t, header, seen)
	assert.Equal(t, header, fromCtx)
}

func TestRequestID_ReusesInboundHeader(t *testing.T) {
	t.Parallel()

	var seen, fromCtx string
	router := requestIDRouter(&seen, &fromCtx)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-abc.123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, "client-abc.123", resp.Header().Get(RequestIDHeader))
	assert.Equal(t, "client-abc.123", seen)

	bad := httptest.NewRequest(http.MethodGet, "/ping", nil)
	bad.Header.Set(RequestIDHeader, "evil\nlog line")
	badResp := httptest.NewRecorder()
	router.ServeHTTP(badResp, bad)
	assert.NotEqual(t, "evil\nlog line", seen)
	assert.Len(t, seen, 26)
}

func TestGetRequestID_Missing(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "-", GetRequestID(c))
}
