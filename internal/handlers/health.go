package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type readyResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Environment string            `json:"environment"`
}

// Health is liveness only; it never touches dependencies.
func (h HandlerSet) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h HandlerSet) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := readyResponse{
		Status:      "ok",
		Checks:      make(map[string]string, len(h.checks)),
		Environment: h.cfg.Environment,
	}
	status := http.StatusOK

	if h.draining.Load() {
		resp.Status = "draining"
		status = http.StatusServiceUnavailable
	}

	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.log.Error().Err(err).Str("check", check.Name).Msg("readiness check failed")
			resp.Checks[check.Name] = "error"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	c.JSON(status, resp)
}
