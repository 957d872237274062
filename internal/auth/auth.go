// Package auth implements the login and signup flows in front of the
// backend: local validation, the remote call, session writes and the
// notices the browser shows afterwards.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/notify"
	"usermgmt/console/internal/session"
)

const (
	DashboardPath = "/dashboard"
	LoginPath     = "/login"

	// SignupImageName is the file name a signup avatar is always sent under.
	SignupImageName = "profile.jpg"

	loginNoticeDuration = time.Second
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError is a local check that failed before anything was sent.
type ValidationError struct {
	Field       string
	Title       string
	Description string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Title)
}

func (e *ValidationError) Notice() notify.Notice {
	return notify.Error(e.Title, e.Description)
}

type Gateway interface {
	Login(ctx context.Context, creds apiclient.Credentials) (apiclient.LoginResult, error)
	Signup(ctx context.Context, form apiclient.SignupForm) (apiclient.Ack, error)
}

type LoginForm struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type SignupForm struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	// Image is a file sent along with the form; ImageRef names a preview
	// staged earlier. Image wins when both are set.
	Image    *media.Upload
	ImageRef string
}

// Outcome is where the browser goes next, after waiting After.
type Outcome struct {
	Redirect string
	After    time.Duration
}

type Flow struct {
	gateway       Gateway
	stager        media.Stager
	notices       notify.Sink
	redirectDelay time.Duration
	log           zerolog.Logger
}

func NewFlow(gateway Gateway, stager media.Stager, notices notify.Sink, redirectDelay time.Duration, log zerolog.Logger) *Flow {
	return &Flow{
		gateway:       gateway,
		stager:        stager,
		notices:       notices,
		redirectDelay: redirectDelay,
		log:           log.With().Str("component", "auth").Logger(),
	}
}

// LoginDefaults prefills the login form from remembered credentials.
func (f *Flow) LoginDefaults(ctx context.Context, sess *session.Session) (LoginForm, error) {
	creds, ok, err := sess.Remembered(ctx)
	if err != nil || !ok {
		return LoginForm{}, err
	}
	return LoginForm{Email: creds.Email, Password: creds.Password, RememberMe: true}, nil
}

func (f *Flow) Login(ctx context.Context, sess *session.Session, form LoginForm) (Outcome, error) {
	if strings.TrimSpace(form.Email) == "" || form.Password == "" {
		verr := &ValidationError{Field: "email", Title: "Login Failed", Description: "Email and password are required."}
		if form.Password == "" && strings.TrimSpace(form.Email) != "" {
			verr.Field = "password"
		}
		f.push(ctx, verr.Notice())
		return Outcome{}, verr
	}

	res, err := f.gateway.Login(ctx, apiclient.Credentials{Email: form.Email, Password: form.Password})
	if err == nil {
		err = sess.SignIn(ctx, session.Identity{
			Token:  res.Token,
			UserID: res.UserID.String(),
			RoleID: res.RoleID.String(),
		})
	}
	if err != nil {
		f.log.Warn().Err(err).Str("email", form.Email).Msg("login failed")
		f.push(ctx, notify.Error("Login Failed", loginFailureMessage(err)))
		return Outcome{}, err
	}

	if form.RememberMe {
		err = sess.Remember(ctx, session.Credentials{Email: form.Email, Password: form.Password})
	} else {
		err = sess.Forget(ctx)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("update remembered credentials: %w", err)
	}

	f.log.Info().Str("user_id", res.UserID.String()).Msg("login succeeded")
	f.push(ctx, notify.Info("Login Successful", "Welcome back!").For(loginNoticeDuration))
	return Outcome{Redirect: DashboardPath, After: f.redirectDelay}, nil
}

func loginFailureMessage(err error) string {
	const fallback = "Please check your credentials and try again."
	if errors.Is(err, session.ErrIncompleteIdentity) {
		return fallback
	}
	return apiclient.MessageOr(err, fallback)
}

// ValidateSignup runs the checks done before any network call: email shape,
// then password confirmation.
func ValidateSignup(form SignupForm) error {
	if !emailPattern.MatchString(form.Email) {
		return &ValidationError{Field: "email", Title: "Invalid Email", Description: "Please enter a valid email address."}
	}
	if form.Password != form.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Title: "Passwords do not match", Description: "Please ensure both password fields are identical."}
	}
	return nil
}

// Signup registers a new account. The "Link Sent Successfully" notice is
// queued as soon as the request starts, before the backend has answered.
func (f *Flow) Signup(ctx context.Context, form SignupForm) (Outcome, error) {
	if err := ValidateSignup(form); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			f.push(ctx, verr.Notice())
		}
		return Outcome{}, err
	}

	req := apiclient.SignupForm{
		FullName:        form.FullName,
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
	}
	image, err := f.signupImage(ctx, form)
	if err != nil {
		f.push(ctx, notify.Error("Signup Failed", "The selected picture could not be used."))
		return Outcome{}, err
	}
	req.ProfileImage = image

	f.push(ctx, notify.Info("Link Sent Successfully", "Check your email to verify your account."))

	if _, err := f.gateway.Signup(ctx, req); err != nil {
		f.log.Warn().Err(err).Str("email", form.Email).Msg("signup failed")
		f.push(ctx, notify.Error("Signup Failed", apiclient.MessageOr(err, "Something went wrong. Please try again.")))
		return Outcome{}, err
	}

	if form.Image == nil && form.ImageRef != "" {
		if err := f.stager.Discard(ctx, form.ImageRef); err != nil {
			f.log.Warn().Err(err).Str("preview_id", form.ImageRef).Msg("failed to discard signup preview")
		}
	}
	return Outcome{Redirect: LoginPath}, nil
}

func (f *Flow) signupImage(ctx context.Context, form SignupForm) (*apiclient.File, error) {
	switch {
	case form.Image != nil:
		clean, err := media.Prepare(*form.Image)
		if err != nil {
			return nil, err
		}
		return &apiclient.File{Name: SignupImageName, ContentType: clean.ContentType, Data: clean.Data}, nil
	case form.ImageRef != "":
		staged, err := f.stager.Open(ctx, form.ImageRef)
		if err != nil {
			return nil, fmt.Errorf("open signup preview: %w", err)
		}
		return &apiclient.File{Name: SignupImageName, ContentType: staged.MIME, Data: staged.Data}, nil
	default:
		return nil, nil
	}
}

func (f *Flow) push(ctx context.Context, n notify.Notice) {
	if err := f.notices.Push(ctx, n); err != nil {
		f.log.Warn().Err(err).Str("title", n.Title).Msg("failed to queue notice")
	}
}
