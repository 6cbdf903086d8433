package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is where DeviceAuth stores the verified claims on the context.
const ClaimsKey = "claims"

// DeviceAuth enforces bearer access tokens.
func DeviceAuth(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := issuer.Parse(tokenStr, KindAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// DeviceID returns the subject of the verified token, or "" outside
// DeviceAuth.
func DeviceID(c *gin.Context) string {
	claims, ok := c.Get(ClaimsKey)
	if !ok {
		return ""
	}
	cl, _ := claims.(Claims)
	return cl.Subject
}
