package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"usermgmt/console/internal/config"
	"usermgmt/console/internal/console"
	"usermgmt/console/internal/ids"
	"usermgmt/console/internal/security"
)

const workspaceKey = "workspace"

// BrowserSession resolves the browser id carried in the signed cookie and
// attaches that browser's workspace. Browsers without a valid cookie get a
// new id; the cookie is reissued once half its lifetime has passed.
func BrowserSession(cfg config.SessionConfig, registry *console.Registry, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		browserID, reissue := "", true

		if raw, err := c.Cookie(cfg.CookieName); err == nil && raw != "" {
			claims, err := security.ParseBrowserToken(raw, cfg.CookieSecret)
			if err == nil && ids.Valid(claims.BrowserID) {
				browserID = claims.BrowserID
				reissue = claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) < cfg.CookieTTL/2
			}
		}
		if browserID == "" {
			browserID = ids.New()
		}

		if reissue {
			token, expires, err := security.GenerateBrowserToken(cfg.CookieSecret, browserID, cfg.CookieTTL)
			if err != nil {
				log.Error().Err(err).Msg("issue browser cookie")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
				return
			}
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    token,
				Path:     "/",
				Expires:  expires,
				MaxAge:   int(cfg.CookieTTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set(workspaceKey, registry.Get(browserID))
		c.Next()
	}
}

// Workspace returns the workspace BrowserSession attached. It panics when
// the middleware is missing from the chain.
func Workspace(c *gin.Context) *console.Workspace {
	return c.MustGet(workspaceKey).(*console.Workspace)
}

func workspaceOrNil(c *gin.Context) *console.Workspace {
	v, ok := c.Get(workspaceKey)
	if !ok {
		return nil
	}
	ws, _ := v.(*console.Workspace)
	return ws
}
