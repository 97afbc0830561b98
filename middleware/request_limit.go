package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdf-query-system/utils"
)

// RequestSizeLimit rejects bodies over maxSize by Content-Length and caps
// the reader for chunked uploads.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.RespondWithPayloadTooLarge(c,
				"Request body exceeds maximum size",
				gin.H{
					"max_size":    maxSize,
					"received":    c.Request.ContentLength,
					"max_size_mb": maxSize / (1024 * 1024),
				})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
