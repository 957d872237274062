// Package session is the single read/write surface over one browser's
// session keys. Components hold a *Session instead of reading the store ad
// hoc, and subscribe to it to learn about sign-in and sign-out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"usermgmt/console/internal/kv"
)

// Storage keys, kept identical to what the browser console wrote.
const (
	KeyToken              = "token"
	KeyUserID             = "user_id"
	KeyRoleID             = "role_id"
	KeyRememberedEmail    = "rememberedEmail"
	KeyRememberedPassword = "rememberedPassword"
	KeyRememberMe         = "rememberMe"
)

var ErrIncompleteIdentity = errors.New("session: token, user_id and role_id are all required")

type EventKind string

const (
	EventSignedIn     EventKind = "signed_in"
	EventTokenCleared EventKind = "token_cleared"
	EventCleared      EventKind = "cleared"
	EventRemembered   EventKind = "remembered"
	EventForgotten    EventKind = "forgotten"
)

type Event struct {
	Kind     EventKind
	Identity Identity
}

// Identity is the authenticated triple. It is only ever reported as present
// when all three fields are.
type Identity struct {
	Token  string
	UserID string
	RoleID string
}

func (i Identity) complete() bool {
	return i.Token != "" && i.UserID != "" && i.RoleID != ""
}

type Credentials struct {
	Email    string
	Password string
}

// Sealer protects the remembered password at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

type Session struct {
	store     kv.Store
	namespace string
	sealer    Sealer

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

func New(store kv.Store, namespace string, sealer Sealer) *Session {
	return &Session{
		store:     store,
		namespace: namespace,
		sealer:    sealer,
		listeners: make(map[int]func(Event)),
	}
}

func (s *Session) Namespace() string { return s.namespace }

// Subscribe registers fn for every successful write. The returned func removes it.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.store.Get(ctx, s.namespace, key)
	if err != nil {
		return "", fmt.Errorf("session: read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// Identity reports the authenticated identity; ok is false for an anonymous
// or partially written session.
func (s *Session) Identity(ctx context.Context) (Identity, bool, error) {
	var id Identity
	var err error
	if id.Token, err = s.get(ctx, KeyToken); err != nil {
		return Identity{}, false, err
	}
	if id.UserID, err = s.get(ctx, KeyUserID); err != nil {
		return Identity{}, false, err
	}
	if id.RoleID, err = s.get(ctx, KeyRoleID); err != nil {
		return Identity{}, false, err
	}
	if !id.complete() {
		return Identity{}, false, nil
	}
	return id, true, nil
}

func (s *Session) Token(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken)
}

func (s *Session) UserID(ctx context.Context) (string, error) {
	return s.get(ctx, KeyUserID)
}

func (s *Session) RoleID(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRoleID)
}

func (s *Session) SignIn(ctx context.Context, id Identity) error {
	if !id.complete() {
		return ErrIncompleteIdentity
	}
	for _, kvp := range [][2]string{
		{KeyToken, id.Token},
		{KeyUserID, id.UserID},
		{KeyRoleID, id.RoleID},
	} {
		if err := s.store.Set(ctx, s.namespace, kvp[0], kvp[1]); err != nil {
			return fmt.Errorf("session: write %s: %w", kvp[0], err)
		}
	}
	s.notify(Event{Kind: EventSignedIn, Identity: id})
	return nil
}

func (s *Session) Remember(ctx context.Context, creds Credentials) error {
	sealed, err := s.sealer.Seal(creds.Password)
	if err != nil {
		return fmt.Errorf("session: seal password: %w", err)
	}
	for _, kvp := range [][2]string{
		{KeyRememberedEmail, creds.Email},
		{KeyRememberedPassword, sealed},
		{KeyRememberMe, "true"},
	} {
		if err := s.store.Set(ctx, s.namespace, kvp[0], kvp[1]); err != nil {
			return fmt.Errorf("session: write %s: %w", kvp[0], err)
		}
	}
	s.notify(Event{Kind: EventRemembered})
	return nil
}

func (s *Session) Forget(ctx context.Context) error {
	for _, key := range []string{KeyRememberedEmail, KeyRememberedPassword, KeyRememberMe} {
		if err := s.store.Remove(ctx, s.namespace, key); err != nil {
			return fmt.Errorf("session: remove %s: %w", key, err)
		}
	}
	s.notify(Event{Kind: EventForgotten})
	return nil
}

// Remembered returns the stored login form values. ok is false unless the
// remember flag is set and both values are present.
func (s *Session) Remembered(ctx context.Context) (Credentials, bool, error) {
	flag, err := s.get(ctx, KeyRememberMe)
	if err != nil {
		return Credentials{}, false, err
	}
	email, err := s.get(ctx, KeyRememberedEmail)
	if err != nil {
		return Credentials{}, false, err
	}
	sealed, err := s.get(ctx, KeyRememberedPassword)
	if err != nil {
		return Credentials{}, false, err
	}
	if flag != "true" || email == "" || sealed == "" {
		return Credentials{}, false, nil
	}

	password, err := s.sealer.Open(sealed)
	if err != nil {
		// A rotated secret makes old values unreadable; treat as not remembered.
		return Credentials{}, false, nil
	}
	return Credentials{Email: email, Password: password}, true, nil
}

// ClearToken is what the console's logout does: only the token goes,
// user_id and role_id stay behind.
func (s *Session) ClearToken(ctx context.Context) error {
	if err := s.store.Remove(ctx, s.namespace, KeyToken); err != nil {
		return fmt.Errorf("session: remove token: %w", err)
	}
	s.notify(Event{Kind: EventTokenCleared})
	return nil
}

func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx, s.namespace); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	s.notify(Event{Kind: EventCleared})
	return nil
}
