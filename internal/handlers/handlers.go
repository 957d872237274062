package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/auth"
	"usermgmt/console/internal/config"
	"usermgmt/console/internal/console"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/middleware"
	"usermgmt/console/internal/notify"
	"usermgmt/console/internal/profile"
	"usermgmt/console/internal/users"
)

// statusClientClosed is logged when the browser went away mid-request.
const statusClientClosed = 499

// Check is one dependency pinged by /ready.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	registry *console.Registry
	stager   media.Stager
	checks   []Check
	draining *atomic.Bool
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, registry *console.Registry, stager media.Stager, checks ...Check) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		registry: registry,
		stager:   stager,
		checks:   checks,
		draining: new(atomic.Bool),
	}
}

// Drain makes /ready report unavailable so load balancers stop routing here
// before the server shuts down.
func (h HandlerSet) Drain() {
	h.draining.Store(true)
}

func (h HandlerSet) Register(engine *gin.Engine) {
	engine.GET("/healthz", h.Health)
	engine.GET("/ready", h.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/previews/:id", h.Preview)

	api := engine.Group("/api")
	api.Use(middleware.BrowserSession(h.cfg.Session, h.registry, h.log))
	if h.cfg.CSRF.Enabled {
		api.Use(middleware.CSRF(h.cfg.CSRF, h.cfg.Session.CookieSecure))
	}
	{
		api.GET("/csrf", h.CSRFToken)

		api.GET("/login", h.LoginDefaults)
		api.POST("/login", h.Login)
		api.POST("/signup", h.Signup)
		api.POST("/signup/avatar", h.StageSignupAvatar)
		api.POST("/logout", h.Logout)

		api.GET("/shell/nav", h.Nav)
		api.POST("/shell/nav/select", h.SelectNav)
		api.GET("/shell/header", h.Header)
	}

	protected := api.Group("")
	protected.Use(middleware.RequireAuth())
	{
		protected.GET("/users", h.ListUsers)
		protected.POST("/users/refresh", h.RefreshUsers)
		protected.POST("/users/filters/clear", h.ClearUserFilters)
		protected.DELETE("/users/:id", h.DeleteUser)

		protected.POST("/profile/open", h.OpenProfile)
		protected.GET("/profile", h.GetProfile)
		protected.PATCH("/profile", h.EditProfile)
		protected.POST("/profile/avatar", h.SelectProfileAvatar)
		protected.POST("/profile/submit", h.SubmitProfile)
		protected.POST("/profile/close", h.CloseProfile)
	}
}

// respond writes body with the browser's pending notices attached.
func (h HandlerSet) respond(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	notices := []notify.Notice{}
	ws := middleware.Workspace(c)
	if drained, err := ws.Notices.Drain(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Str("browser", ws.BrowserID).Msg("failed to drain notices")
	} else {
		notices = drained
	}
	body["notices"] = notices
	c.JSON(status, body)
}

func (h HandlerSet) fail(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		_ = c.Error(err)
	}
	h.respond(c, status, body)
}

func errorBody(err error) (int, gin.H) {
	var verr *auth.ValidationError
	var failure *apiclient.RemoteCallFailure
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, gin.H{"error": verr.Description, "field": verr.Field}
	case errors.As(err, &failure):
		return http.StatusBadGateway, gin.H{"error": failure.Error()}
	case errors.Is(err, profile.ErrBusy):
		return http.StatusConflict, gin.H{"error": "submit_in_progress"}
	case errors.Is(err, profile.ErrNotReady):
		return http.StatusConflict, gin.H{"error": "profile_not_ready"}
	case errors.Is(err, profile.ErrStale), errors.Is(err, users.ErrStale):
		return http.StatusConflict, gin.H{"error": "superseded"}
	case errors.Is(err, profile.ErrUnknownField):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, media.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"}
	case errors.Is(err, media.ErrEmptyUpload):
		return http.StatusBadRequest, gin.H{"error": "file_required"}
	case errors.Is(err, media.ErrNotImage):
		return http.StatusUnsupportedMediaType, gin.H{"error": "unsupported_image"}
	case errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "preview_not_found"}
	case errors.Is(err, context.Canceled):
		return statusClientClosed, gin.H{"error": "request_cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, gin.H{"error": "timeout"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal_error"}
	}
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}

func (h HandlerSet) CSRFToken(c *gin.Context) {
	h.respond(c, http.StatusOK, gin.H{"csrfToken": middleware.CSRFToken(c)})
}
