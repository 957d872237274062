package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"usermgmt/console/internal/auth"
	"usermgmt/console/internal/middleware"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type outcomeResponse struct {
	Redirect string `json:"redirect"`
	AfterMS  int64  `json:"afterMs"`
}

func (h HandlerSet) LoginDefaults(c *gin.Context) {
	ws := middleware.Workspace(c)
	ctx := c.Request.Context()

	form, err := ws.Auth.LoginDefaults(ctx, ws.Session)
	if err != nil {
		h.fail(c, err)
		return
	}
	_, authenticated, err := ws.Session.Identity(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, gin.H{"form": form, "authenticated": authenticated})
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws := middleware.Workspace(c)
	outcome, err := ws.Auth.Login(c.Request.Context(), ws.Session, auth.LoginForm{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, gin.H{"outcome": outcomeResponse{
		Redirect: outcome.Redirect,
		AfterMS:  millis(outcome.After),
	}})
}

// Signup takes the form as multipart so a picture can ride along, either as
// the profileImage file or as imageRef naming a preview staged earlier.
func (h HandlerSet) Signup(c *gin.Context) {
	limitBody(c)

	image, err := formUpload(c, "profileImage")
	if err != nil {
		h.fail(c, err)
		return
	}

	ws := middleware.Workspace(c)
	outcome, err := ws.Auth.Signup(c.Request.Context(), auth.SignupForm{
		FullName:        c.PostForm("fullName"),
		Email:           c.PostForm("email"),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirmPassword"),
		Image:           image,
		ImageRef:        c.PostForm("imageRef"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, gin.H{"outcome": outcomeResponse{
		Redirect: outcome.Redirect,
		AfterMS:  millis(outcome.After),
	}})
}

func (h HandlerSet) Logout(c *gin.Context) {
	ws := middleware.Workspace(c)
	path, err := ws.Shell.Logout(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"outcome": outcomeResponse{Redirect: path}})
}
