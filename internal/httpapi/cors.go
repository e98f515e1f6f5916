package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS lets the configured front-end origins call the API from a browser.
// Requests from other origins get no CORS headers, and their preflights are
// refused.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, ok := allowed[strings.ToLower(origin)]

		if c.Request.Method == http.MethodOptions && origin != "" {
			if !ok {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			setCORSHeaders(c, origin)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if ok {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	c.Header("Access-Control-Expose-Headers", "X-Request-Id")
}
