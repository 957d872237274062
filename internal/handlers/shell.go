package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"usermgmt/console/internal/middleware"
	"usermgmt/console/internal/shell"
)

type selectNavRequest struct {
	Items []shell.NavItem `json:"items"`
	Label string          `json:"label" binding:"required"`
}

// Nav never fails the page: a backend error leaves the sidebar empty.
func (h HandlerSet) Nav(c *gin.Context) {
	ws := middleware.Workspace(c)
	items, _ := ws.Shell.LoadNav(c.Request.Context(), shell.ParseVariant(c.Query("variant")), c.Query("path"))
	h.respond(c, http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) SelectNav(c *gin.Context) {
	var req selectNavRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, path := shell.Select(req.Items, req.Label)
	h.respond(c, http.StatusOK, gin.H{"items": items, "redirect": path})
}

func (h HandlerSet) Header(c *gin.Context) {
	ws := middleware.Workspace(c)
	header, _ := ws.Shell.LoadHeader(c.Request.Context())
	h.respond(c, http.StatusOK, gin.H{"header": header})
}
