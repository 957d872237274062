package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"usermgmt/console/internal/session"
)

const identityKey = "identity"

// RequireAuth rejects browsers whose session does not hold a complete
// identity. A token without user_id or role_id counts as signed out.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := workspaceOrNil(c)
		if ws == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, ok, err := ws.Session.Identity(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session_unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// Identity returns what RequireAuth found.
func Identity(c *gin.Context) session.Identity {
	id, _ := c.MustGet(identityKey).(session.Identity)
	return id
}
