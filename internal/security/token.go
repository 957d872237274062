package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidBrowserToken = errors.New("invalid browser token")

// BrowserClaims identify one browser's storage area. They carry no
// authentication state; that lives in the session store.
type BrowserClaims struct {
	BrowserID string `json:"bid"`
	jwt.RegisteredClaims
}

func GenerateBrowserToken(secret string, browserID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims := BrowserClaims{
		BrowserID: browserID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Subject:   browserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expires, nil
}

func ParseBrowserToken(tokenStr string, secret string) (*BrowserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &BrowserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBrowserToken, err)
	}
	if claims, ok := token.Claims.(*BrowserClaims); ok && token.Valid && claims.BrowserID != "" {
		return claims, nil
	}
	return nil, ErrInvalidBrowserToken
}
