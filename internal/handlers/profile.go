package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/middleware"
	"usermgmt/console/internal/profile"
)

var editableFields = []string{profile.FieldFullName, profile.FieldEmail, profile.FieldPhone}

type openProfileRequest struct {
	UserID string `json:"user_id"`
}

// OpenProfile loads a profile into the editor. Without a user_id in the
// body the signed-in user's own profile is opened.
func (h HandlerSet) OpenProfile(c *gin.Context) {
	var req openProfileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.UserID == "" {
		req.UserID = middleware.Identity(c).UserID
	}

	ws := middleware.Workspace(c)
	err := ws.Profile.Open(c.Request.Context(), req.UserID)

	var failure *apiclient.RemoteCallFailure
	if err != nil && !errors.As(err, &failure) {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"profile": ws.Profile.Snapshot()})
}

func (h HandlerSet) GetProfile(c *gin.Context) {
	ws := middleware.Workspace(c)
	h.respond(c, http.StatusOK, gin.H{"profile": ws.Profile.Snapshot()})
}

// EditProfile applies field edits given as {"full_name": "...", ...}.
func (h HandlerSet) EditProfile(c *gin.Context) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for name := range fields {
		if !slices.Contains(editableFields, name) {
			h.fail(c, fmt.Errorf("%w: %s", profile.ErrUnknownField, name))
			return
		}
	}

	ws := middleware.Workspace(c)
	for _, name := range editableFields {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if err := ws.Profile.SetField(name, value); err != nil {
			h.fail(c, err)
			return
		}
	}

	h.respond(c, http.StatusOK, gin.H{"profile": ws.Profile.Snapshot()})
}

func (h HandlerSet) SelectProfileAvatar(c *gin.Context) {
	limitBody(c)

	upload, err := requiredUpload(c, "profileImage")
	if err != nil {
		h.fail(c, err)
		return
	}

	ws := middleware.Workspace(c)
	snap, err := ws.Profile.SelectAvatar(c.Request.Context(), *upload)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"profile": snap})
}

func (h HandlerSet) SubmitProfile(c *gin.Context) {
	ws := middleware.Workspace(c)
	outcome, err := ws.Profile.Submit(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{
		"profile":      ws.Profile.Snapshot(),
		"closeAfterMs": millis(outcome.CloseAfter),
	})
}

func (h HandlerSet) CloseProfile(c *gin.Context) {
	ws := middleware.Workspace(c)
	ws.Profile.Close(c.Request.Context())
	h.respond(c, http.StatusOK, gin.H{"profile": ws.Profile.Snapshot()})
}
