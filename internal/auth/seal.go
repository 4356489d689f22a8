package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const sealPrefix = "v1."

var ErrSealed = errors.New("token is sealed with a different or missing TOKEN_SECRET")

// Sealer encrypts tokens at rest with a key derived from a passphrase.
type Sealer struct {
	key [32]byte
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sealer: empty secret")
	}
	k, err := scrypt.Key([]byte(secret), []byte("ekosmy-portfolio/token/v1"), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("sealer: derive key: %w", err)
	}
	s := &Sealer{}
	copy(s.key[:], k)
	return s, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		// stored before a secret was configured
		return sealed, nil
	}
	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", ErrSealed
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrSealed
	}
	return string(plain), nil
}

func IsSealed(v string) bool { return strings.HasPrefix(v, sealPrefix) }
