package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/middleware"
	"usermgmt/console/internal/users"
)

// ListUsers applies any query parameters present, loads the list if the
// signed-in identity changed, and returns the filtered view. A failed fetch
// keeps whatever list was shown before.
func (h HandlerSet) ListUsers(c *gin.Context) {
	ws := middleware.Workspace(c)
	id := middleware.Identity(c)

	q := ws.Users.Query()
	if v, ok := c.GetQuery("search"); ok {
		q.Search = v
	}
	if v, ok := c.GetQuery("role"); ok {
		q.Role = v
	}
	if v, ok := c.GetQuery("status"); ok {
		q.Status = v
	}
	if v, ok := c.GetQuery("sort"); ok {
		q.Sort = v
	}
	ws.Users.SetQuery(q)

	h.usersView(c, ws.Users.Load(c.Request.Context(), id.RoleID, id.UserID))
}

func (h HandlerSet) RefreshUsers(c *gin.Context) {
	ws := middleware.Workspace(c)
	id := middleware.Identity(c)
	h.usersView(c, ws.Users.Refresh(c.Request.Context(), id.RoleID, id.UserID))
}

func (h HandlerSet) ClearUserFilters(c *gin.Context) {
	ws := middleware.Workspace(c)
	ws.Users.ClearFilters()
	h.respond(c, http.StatusOK, gin.H{"result": ws.Users.View()})
}

// DeleteUser removes the user remotely. The list is deliberately not
// refetched; the row stays until the next refresh.
func (h HandlerSet) DeleteUser(c *gin.Context) {
	ws := middleware.Workspace(c)
	ack, err := ws.Users.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"ack": ack, "result": ws.Users.View()})
}

func (h HandlerSet) usersView(c *gin.Context, loadErr error) {
	ws := middleware.Workspace(c)
	var failure *apiclient.RemoteCallFailure
	switch {
	case loadErr == nil:
		h.respond(c, http.StatusOK, gin.H{"result": ws.Users.View()})
	case errors.As(loadErr, &failure):
		h.respond(c, http.StatusOK, gin.H{
			"result":    ws.Users.View(),
			"loadError": apiclient.MessageOr(loadErr, "Failed to fetch users"),
		})
	case errors.Is(loadErr, users.ErrStale):
		h.respond(c, http.StatusOK, gin.H{"result": ws.Users.View(), "stale": true})
	default:
		h.fail(c, loadErr)
	}
}
