package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/config"
	"usermgmt/console/internal/console"
	"usermgmt/console/internal/handlers"
	"usermgmt/console/internal/kv"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/middleware"
)

func TestNewEngine_ChainAndRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{
		Environment: "test",
		Session: config.SessionConfig{
			CookieName:   "console_sid",
			CookieSecret: "secret",
			CookieTTL:    time.Hour,
		},
		AllowCORSOrigins: []string{"https://app.example.com"},
	}
	stager := media.NewMemoryStager()
	registry := console.NewRegistry(kv.NewMemoryStore(), nil, apiclient.New("http://backend.invalid", zerolog.Nop()), stager, console.Settings{}, zerolog.Nop())
	engine := NewEngine(cfg, zerolog.Nop(), handlers.NewHandlerSet(zerolog.Nop(), cfg, registry, stager))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console_http_requests_total")

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
