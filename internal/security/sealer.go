package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sealed:v1:"

var ErrUnsealFailed = errors.New("unseal failed")

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
}

// Sealer encrypts small secrets (remembered passwords) before they are put in
// the session store. The key is derived once from a configured secret.
type Sealer struct {
	key [32]byte
}

func NewSealer(secret string) *Sealer {
	return NewSealerWithParams(secret, defaultParams)
}

func NewSealerWithParams(secret string, params Argon2Params) *Sealer {
	// The salt is fixed so every replica derives the same key.
	derived := argon2.IDKey([]byte(secret), []byte("user-console/remember-me"), params.Time, params.Memory, params.Threads, 32)

	s := &Sealer{}
	copy(s.key[:], derived)
	return s
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrUnsealFailed
	}

	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(box) < 24 {
		return "", ErrUnsealFailed
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])

	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealFailed
	}
	return string(plain), nil
}
