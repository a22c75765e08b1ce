package middleware

import "github.com/gin-gonic/gin"

// NoCache marks responses as uncacheable. Pages carry session-specific
// orders and authorization results.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
