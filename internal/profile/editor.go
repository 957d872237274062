// Package profile implements the profile editor: a small state machine that
// loads one user's record, takes local edits and submits a full replace.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/models"
	"usermgmt/console/internal/notify"
)

type State string

const (
	StateClosed     State = "closed"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
)

const (
	FieldFullName = "full_name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
)

var (
	ErrBusy         = errors.New("profile: submit already in progress")
	ErrNotReady     = errors.New("profile: editor is not ready")
	ErrUnknownField = errors.New("profile: unknown field")
	ErrStale        = errors.New("profile: load superseded")
)

type Gateway interface {
	GetProfile(ctx context.Context, userID string) (apiclient.ProfileResponse, error)
	UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (apiclient.Ack, error)
}

type Config struct {
	Avatars AvatarResolver
	// PreviewBaseURL is where staged avatars are served, without the id.
	PreviewBaseURL string
	CloseDelay     time.Duration
}

type Form struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ProfileImage string `json:"profile_image"`
}

// Snapshot is the editor as the modal renders it.
type Snapshot struct {
	State     State  `json:"state"`
	UserID    string `json:"user_id,omitempty"`
	Form      Form   `json:"form"`
	AvatarURL string `json:"avatar_url"`
	Preview   bool   `json:"preview"`
}

// Outcome tells the browser to close the modal once CloseAfter has passed.
type Outcome struct {
	CloseAfter time.Duration
}

type Editor struct {
	gateway Gateway
	stager  media.Stager
	notices notify.Sink
	cfg     Config
	log     zerolog.Logger

	mu         sync.Mutex
	state      State
	userID     string
	form       Form
	staged     *media.Staged
	gen        uint64
	cancelLoad context.CancelFunc
}

func NewEditor(gateway Gateway, stager media.Stager, notices notify.Sink, cfg Config, log zerolog.Logger) *Editor {
	return &Editor{
		gateway: gateway,
		stager:  stager,
		notices: notices,
		cfg:     cfg,
		log:     log.With().Str("component", "profile").Logger(),
		state:   StateClosed,
	}
}

func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Editor) snapshotLocked() Snapshot {
	return Snapshot{
		State:     e.state,
		UserID:    e.userID,
		Form:      e.form,
		AvatarURL: e.cfg.Avatars.URL(e.form.ProfileImage),
		Preview:   e.staged != nil,
	}
}

// Open starts loading userID's profile. An empty userID leaves the editor
// closed without any fetch. Opening again abandons a load still in flight.
func (e *Editor) Open(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	e.mu.Lock()
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.gen++
	gen := e.gen
	loadCtx, cancel := context.WithCancel(ctx)
	e.cancelLoad = cancel
	e.state = StateLoading
	e.userID = userID
	e.form = Form{}
	previous := e.staged
	e.staged = nil
	e.mu.Unlock()
	defer cancel()

	e.discard(ctx, previous)

	resp, err := e.gateway.GetProfile(loadCtx, userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || loadCtx.Err() != nil {
		return ErrStale
	}
	e.cancelLoad = nil

	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Msg("failed to load profile")
		e.push(ctx, notify.Error("Profile Unavailable", apiclient.MessageOr(err, "Failed to fetch user profile")))
		e.state = StateReady
		return err
	}
	if resp.Code != 200 || resp.Data == nil {
		// Nothing to show; the modal keeps its loading indicator.
		e.log.Warn().Int("code", resp.Code).Str("user_id", userID).Msg("profile not returned")
		return nil
	}

	e.form = formFrom(*resp.Data)
	e.state = StateReady
	return nil
}

func formFrom(p models.Profile) Form {
	return Form{
		FullName:     p.FullName,
		Email:        p.Email,
		Phone:        p.Phone,
		ProfileImage: p.ProfileImage,
	}
}

func (e *Editor) SetField(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady {
		return ErrNotReady
	}
	switch name {
	case FieldFullName:
		e.form.FullName = value
	case FieldEmail:
		e.form.Email = value
	case FieldPhone:
		e.form.Phone = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// SelectAvatar stages a locally chosen picture and points the form at its
// preview. The backend is not contacted until Submit.
func (e *Editor) SelectAvatar(ctx context.Context, up media.Upload) (Snapshot, error) {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return Snapshot{}, ErrNotReady
	}
	e.mu.Unlock()

	staged, err := e.stager.Stage(ctx, up)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		e.discard(ctx, &staged)
		return Snapshot{}, ErrNotReady
	}
	previous := e.staged
	e.staged = &staged
	e.form.ProfileImage = strings.TrimSuffix(e.cfg.PreviewBaseURL, "/") + "/" + staged.ID
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.discard(ctx, previous)
	return snap, nil
}

// Submit sends the whole form. The staged file, not its preview URL, is
// attached when one was selected.
func (e *Editor) Submit(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	switch e.state {
	case StateSubmitting:
		e.mu.Unlock()
		return Outcome{}, ErrBusy
	case StateReady:
	default:
		e.mu.Unlock()
		return Outcome{}, ErrNotReady
	}
	e.state = StateSubmitting
	form, userID, staged := e.form, e.userID, e.staged
	e.mu.Unlock()

	update := apiclient.ProfileUpdate{
		UserID:   userID,
		FullName: form.FullName,
		Email:    form.Email,
		Phone:    form.Phone,
	}

	err := e.attach(ctx, &update, staged)
	if err == nil {
		_, err = e.gateway.UpdateProfile(ctx, update)
	}

	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Msg("profile update failed")
		e.mu.Lock()
		if e.state == StateSubmitting {
			e.state = StateReady
		}
		e.mu.Unlock()
		e.push(ctx, notify.Error("Update Failed", apiclient.MessageOr(err, "There was a problem updating your profile.")))
		return Outcome{}, err
	}

	e.mu.Lock()
	e.state = StateClosed
	e.staged = nil
	e.mu.Unlock()

	e.discard(ctx, staged)
	e.push(ctx, notify.Info("Profile Updated", "Your profile has been successfully updated.").For(e.cfg.CloseDelay))
	return Outcome{CloseAfter: e.cfg.CloseDelay}, nil
}

func (e *Editor) attach(ctx context.Context, update *apiclient.ProfileUpdate, staged *media.Staged) error {
	if staged == nil {
		return nil
	}
	file, err := e.stager.Open(ctx, staged.ID)
	if err != nil {
		return fmt.Errorf("open staged avatar: %w", err)
	}
	update.ProfileImage = &apiclient.File{Name: file.Name, ContentType: file.MIME, Data: file.Data}
	return nil
}

// Close dismisses the modal, abandoning any load in flight.
func (e *Editor) Close(ctx context.Context) {
	e.mu.Lock()
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.gen++
	e.state = StateClosed
	e.userID = ""
	e.form = Form{}
	staged := e.staged
	e.staged = nil
	e.mu.Unlock()

	e.discard(ctx, staged)
}

func (e *Editor) discard(ctx context.Context, staged *media.Staged) {
	if staged == nil {
		return
	}
	if err := e.stager.Discard(ctx, staged.ID); err != nil {
		e.log.Warn().Err(err).Str("preview_id", staged.ID).Msg("failed to discard staged avatar")
	}
}

func (e *Editor) push(ctx context.Context, n notify.Notice) {
	if err := e.notices.Push(ctx, n); err != nil {
		e.log.Warn().Err(err).Str("title", n.Title).Msg("failed to queue notice")
	}
}
