package middleware

import (
	"github.com/gin-gonic/gin"

	"pdf-query-system/utils"
)

// RequireReady rejects requests with 503 until ready reports true.
func RequireReady(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready() {
			c.Header("Retry-After", "5")
			utils.RespondWithServiceUnavailable(c, "Service is starting up or shutting down")
			c.Abort()
			return
		}
		c.Next()
	}
}
