// file: internal/server/middleware/request_id.go
// version: 1.1.0
// guid: 4d581ce8-bb18-45dd-b183-c5043469a749

package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/music-catalog/internal/logger"
	ulid "github.com/oklog/ulid/v2"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the ID.
	RequestIDKey = "request_id"
)

// inbound IDs are echoed into logs, so only accept a safe alphabet
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID tags every request with an ID, reusing a well-formed inbound
// X-Request-ID or minting a ULID. The ID is stored on the gin context, the
// request context and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = ulid.Make().String()
		}
		c.Set(RequestIDKey, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "-".
func GetRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return "-"
}
