package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usermgmt/console/internal/kv"
)

type reverseSealer struct{}

func (reverseSealer) Seal(p string) (string, error) { return "sealed:" + reverse(p), nil }

func (reverseSealer) Open(s string) (string, error) {
	if !strings.HasPrefix(s, "sealed:") {
		return "", errors.New("not sealed")
	}
	return reverse(strings.TrimPrefix(s, "sealed:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func newTestSession(t *testing.T) (*Session, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	return New(store, "browser-1", reverseSealer{}), store
}

func TestIdentity_AllOrNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		values map[string]string
		wantOK bool
	}{
		{"empty", map[string]string{}, false},
		{"token only", map[string]string{KeyToken: "t"}, false},
		{"missing role", map[string]string{KeyToken: "t", KeyUserID: "7"}, false},
		{"missing token", map[string]string{KeyUserID: "7", KeyRoleID: "1"}, false},
		{"blank role", map[string]string{KeyToken: "t", KeyUserID: "7", KeyRoleID: ""}, false},
		{"complete", map[string]string{KeyToken: "t", KeyUserID: "7", KeyRoleID: "1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestSession(t)
			for k, v := range tt.values {
				require.NoError(t, store.Set(ctx, "browser-1", k, v))
			}

			id, ok, err := s.Identity(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, Identity{Token: "t", UserID: "7", RoleID: "1"}, id)
			} else {
				assert.Equal(t, Identity{}, id)
			}
		})
	}
}

func TestSignIn_RejectsPartialIdentity(t *testing.T) {
	s, store := newTestSession(t)

	err := s.SignIn(context.Background(), Identity{Token: "t", UserID: "7"})
	assert.ErrorIs(t, err, ErrIncompleteIdentity)

	_, ok, _ := store.Get(context.Background(), "browser-1", KeyToken)
	assert.False(t, ok)
}

func TestSignIn_NotifiesSubscribers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	var got []Event
	unsubscribe := s.Subscribe(func(ev Event) { got = append(got, ev) })

	require.NoError(t, s.SignIn(ctx, Identity{Token: "t", UserID: "7", RoleID: "2"}))
	require.Len(t, got, 1)
	assert.Equal(t, EventSignedIn, got[0].Kind)
	assert.Equal(t, "7", got[0].Identity.UserID)

	unsubscribe()
	require.NoError(t, s.ClearToken(ctx))
	assert.Len(t, got, 1)
}

func TestRememberAndForget(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)

	require.NoError(t, s.Remember(ctx, Credentials{Email: "a@x.com", Password: "pw"}))

	raw, ok, _ := store.Get(ctx, "browser-1", KeyRememberedPassword)
	require.True(t, ok)
	assert.NotEqual(t, "pw", raw)
	flag, _, _ := store.Get(ctx, "browser-1", KeyRememberMe)
	assert.Equal(t, "true", flag)

	creds, ok, err := s.Remembered(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Credentials{Email: "a@x.com", Password: "pw"}, creds)

	require.NoError(t, s.Forget(ctx))
	for _, key := range []string{KeyRememberedEmail, KeyRememberedPassword, KeyRememberMe} {
		_, ok, _ := store.Get(ctx, "browser-1", key)
		assert.False(t, ok, key)
	}
	_, ok, err = s.Remembered(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemembered_RequiresFlag(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)

	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberedEmail, "a@x.com"))
	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberedPassword, "sealed:wp"))

	_, ok, err := s.Remembered(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberMe, "false"))
	_, ok, _ = s.Remembered(ctx)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberMe, "true"))
	creds, ok, _ := s.Remembered(ctx)
	assert.True(t, ok)
	assert.Equal(t, "pw", creds.Password)
}

func TestRemembered_UnreadablePasswordIsNotRemembered(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)

	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberMe, "true"))
	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberedEmail, "a@x.com"))
	require.NoError(t, store.Set(ctx, "browser-1", KeyRememberedPassword, "plaintext"))

	_, ok, err := s.Remembered(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearToken_KeepsIdentityFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	require.NoError(t, s.SignIn(ctx, Identity{Token: "t", UserID: "7", RoleID: "1"}))
	require.NoError(t, s.ClearToken(ctx))

	_, ok, err := s.Identity(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	userID, _ := s.UserID(ctx)
	roleID, _ := s.RoleID(ctx)
	assert.Equal(t, "7", userID)
	assert.Equal(t, "1", roleID)
}

func TestClear_RemovesEverything(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	require.NoError(t, s.SignIn(ctx, Identity{Token: "t", UserID: "7", RoleID: "1"}))
	require.NoError(t, s.Remember(ctx, Credentials{Email: "a@x.com", Password: "pw"}))

	var kinds []EventKind
	s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })
	require.NoError(t, s.Clear(ctx))

	userID, _ := s.UserID(ctx)
	assert.Empty(t, userID)
	_, ok, _ := s.Remembered(ctx)
	assert.False(t, ok)
	assert.Equal(t, []EventKind{EventCleared}, kinds)
}
