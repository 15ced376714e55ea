package middleware

import (
	"errors"
	"net/http"
	"strings"

	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// IdentityKey is the gin context key holding the resolved *services.Identity.
const IdentityKey = "identity"

// SessionMiddleware resolves the session token from the cookie, or from an
// "Authorization: Bearer" header, and attaches the identity to both the gin
// context and the request context. Requests without a valid session pass
// through anonymously; RequireAuth and RequireAdmin decide what that means.
func SessionMiddleware(sessions *services.SessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}

		identity, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthorized) {
				log.WithError(err).Warn("session lookup failed")
			}
			c.Next()
			return
		}

		c.Set(IdentityKey, identity)
		c.Request = c.Request.WithContext(services.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return strings.TrimSpace(token)
}

// CurrentIdentity returns the identity resolved for this request, or nil.
func CurrentIdentity(c *gin.Context) *services.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*services.Identity)
	return identity
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.RequireAuthenticated(CurrentIdentity(c)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := services.RequireAdmin(CurrentIdentity(c)); {
		case errors.Is(err, services.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		case errors.Is(err, services.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
