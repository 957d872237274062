package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	"usermgmt/console/internal/config"
)

const CSRFHeader = "X-CSRF-Token"

// CSRF guards cookie-authenticated mutating requests with gorilla/csrf.
// Safe methods pass and receive a token through CSRFToken.
func CSRF(cfg config.CSRFConfig, secureCookie bool) gin.HandlerFunc {
	protect := csrf.Protect([]byte(cfg.AuthKey),
		csrf.Secure(secureCookie),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFHeader),
		csrf.TrustedOrigins(cfg.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"csrf_token_invalid"}`))
		})),
	)

	return func(c *gin.Context) {
		passed := false
		protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}

// CSRFToken is the token for the current request, or "" when CSRF
// protection is off.
func CSRFToken(c *gin.Context) string {
	return csrf.Token(c.Request)
}
