package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"studenthelper/internal/infra/security"
)

const principalKey = "principal"

// Authenticator guards the message routes. Requests without a valid
// bearer token get the 401 envelope the browser client reacts to by
// clearing its stored session.
type Authenticator struct {
	Tokens security.JWTManager
}

func (a Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c)
			return
		}
		claims, err := a.Tokens.Verify(raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(principalKey, claims)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": "Authentication required",
	})
}

func principal(c *gin.Context) (security.TokenClaims, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return security.TokenClaims{}, false
	}
	claims, ok := v.(security.TokenClaims)
	return claims, ok
}
