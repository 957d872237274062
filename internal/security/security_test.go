package security

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}

func TestSealer_RoundTrip(t *testing.T) {
	s := NewSealerWithParams("remember-secret", fastParams)

	sealed, err := s.Seal("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter2")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestSealer_NonceDiffers(t *testing.T) {
	s := NewSealerWithParams("remember-secret", fastParams)

	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_Open_Rejects(t *testing.T) {
	s := NewSealerWithParams("remember-secret", fastParams)
	other := NewSealerWithParams("another-secret", fastParams)

	sealed, err := other.Seal("hunter2")
	require.NoError(t, err)

	tests := map[string]string{
		"wrong key":    sealed,
		"plain value":  "hunter2",
		"bad encoding": sealedPrefix + "!!!",
		"short box":    sealedPrefix + "AAAA",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Open(in)
			assert.ErrorIs(t, err, ErrUnsealFailed)
		})
	}
}

func TestBrowserToken_RoundTrip(t *testing.T) {
	token, expires, err := GenerateBrowserToken("cookie-secret", "browser-1", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := ParseBrowserToken(token, "cookie-secret")
	require.NoError(t, err)
	assert.Equal(t, "browser-1", claims.BrowserID)
}

func TestBrowserToken_Invalid(t *testing.T) {
	token, _, err := GenerateBrowserToken("cookie-secret", "browser-1", time.Hour)
	require.NoError(t, err)

	_, err = ParseBrowserToken(token, "wrong-secret")
	assert.True(t, errors.Is(err, ErrInvalidBrowserToken))

	expired, _, err := GenerateBrowserToken("cookie-secret", "browser-1", -time.Minute)
	require.NoError(t, err)
	_, err = ParseBrowserToken(expired, "cookie-secret")
	assert.ErrorIs(t, err, ErrInvalidBrowserToken)

	_, err = ParseBrowserToken("not-a-jwt", "cookie-secret")
	assert.ErrorIs(t, err, ErrInvalidBrowserToken)
}
