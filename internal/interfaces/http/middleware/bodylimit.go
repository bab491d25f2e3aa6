package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopfront/backend/internal/interfaces/http/dto"
)

// BodyLimit caps request body size. Webhook payloads are single scale
// reports and sync requests are small JSON documents; anything larger is
// rejected up front with 413.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "Request body exceeds the allowed size"))
			return
		}

		// chunked requests carry no Content-Length; cap them while reading
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
