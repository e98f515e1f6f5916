package httpapi

import (
	"travel-booking/internal/audit"

	"github.com/gin-gonic/gin"
)

// ClientIP attaches the resolved client address to the request context for
// the audit trail.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
