package shell

import (
	"context"

	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/profile"
	"usermgmt/console/internal/session"
)

const LoginPath = "/login"

type Gateway interface {
	ListSections(ctx context.Context) (apiclient.SectionsResponse, error)
	GetProfile(ctx context.Context, userID string) (apiclient.ProfileResponse, error)
}

type Header struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	UserID       string `json:"user_id"`
	ProfileImage string `json:"profile_image"`
	AvatarURL    string `json:"avatar_url"`
	Initials     string `json:"initials"`
}

type Shell struct {
	gateway Gateway
	sess    *session.Session
	avatars profile.AvatarResolver
	log     zerolog.Logger
}

func New(gateway Gateway, sess *session.Session, avatars profile.AvatarResolver, log zerolog.Logger) *Shell {
	return &Shell{
		gateway: gateway,
		sess:    sess,
		avatars: avatars,
		log:     log.With().Str("component", "shell").Logger(),
	}
}

// LoadNav returns the navigation for the sections the backend declares.
// Anything but a 200 with an array yields an empty list.
func (s *Shell) LoadNav(ctx context.Context, variant Variant, currentPath string) ([]NavItem, error) {
	resp, err := s.gateway.ListSections(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("error fetching sections")
		return []NavItem{}, err
	}
	if resp.Code != 200 || !resp.IsArray {
		return []NavItem{}, nil
	}
	return BuildNav(resp.Data, variant, currentPath), nil
}

// LoadHeader fetches the signed-in user's display details. Without a stored
// user_id nothing is fetched and the empty header is returned.
func (s *Shell) LoadHeader(ctx context.Context) (Header, error) {
	empty := s.header(Header{})

	userID, err := s.sess.UserID(ctx)
	if err != nil {
		return empty, err
	}
	if userID == "" {
		s.log.Warn().Str("browser", s.sess.Namespace()).Msg("no user_id in session, skipping profile fetch")
		return empty, nil
	}

	resp, err := s.gateway.GetProfile(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("error fetching user profile")
		return empty, err
	}
	if resp.Code != 200 || resp.Data == nil {
		return empty, nil
	}

	return s.header(Header{
		FullName:     resp.Data.FullName,
		Email:        resp.Data.Email,
		UserID:       resp.Data.UserID.String(),
		ProfileImage: resp.Data.ProfileImage,
	}), nil
}

func (s *Shell) header(h Header) Header {
	h.AvatarURL = s.avatars.URL(h.ProfileImage)
	h.Initials = Initials(h.FullName)
	return h
}

// Logout removes the token only, leaving user_id and role_id behind, unless
// all is set, in which case every stored key goes.
func (s *Shell) Logout(ctx context.Context, all bool) (string, error) {
	var err error
	if all {
		err = s.sess.Clear(ctx)
	} else {
		err = s.sess.ClearToken(ctx)
	}
	if err != nil {
		return "", err
	}
	return LoginPath, nil
}
