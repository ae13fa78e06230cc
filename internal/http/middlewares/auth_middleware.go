package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth extracts the bearer token and stashes the verified subject on
// the context. A missing token is 401; a present but invalid or expired one
// is 403 — signature mismatch and expiry are deliberately indistinguishable
// to the client.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		raw := ""
		if strings.HasPrefix(authHeader, "Bearer ") {
			raw = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		}

		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthenticated",
					"message": "No token provided",
				},
			})
			return
		}

		userID, err := m.jwt.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "invalid_token",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		c.Set(CtxUserID, userID)

		c.Next()
	}
}

// UserIDFromContext hides the context key from handlers.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
