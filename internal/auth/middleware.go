package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"

// Verifier is what RequireCaller needs from the auth service.
type Verifier interface {
	VerifyCaller(authorization, tenant, expectedUsername string) (Caller, error)
}

// RequireCaller admits requests whose bearer token names the :username path
// parameter and stores the Caller on the request context. A missing or
// non-bearer header is 401; any other failure is 403 with forbiddenMsg, so
// the response does not reveal which check failed.
func RequireCaller(v Verifier, forbiddenMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(authorizationHeader)
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"failure": "Bearer Authentication must be used"})
			return
		}

		caller, err := v.VerifyCaller(raw, c.Param("tenant"), c.Param("username"))
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"failure": forbiddenMsg})
			return
		}

		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}
