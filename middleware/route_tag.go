package middleware

import "github.com/gin-gonic/gin"

const RouteTagKey = "route_tag"

// RouteTag labels every request of a route group with tag.
func RouteTag(tag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(RouteTagKey, tag)
		c.Next()
	}
}
