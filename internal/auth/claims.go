package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client can read from a token without the signing key.
type Claims struct {
	Subject   string
	Email     string
	Roles     []string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string   `json:"email"`
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Inspect decodes a JWT without verifying it. Opaque session tokens fail
// with an error and are treated as non-expiring by callers.
func Inspect(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, errors.New("empty token")
	}
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &tc); err != nil {
		return Claims{}, err
	}
	c := Claims{Subject: tc.Subject, Email: tc.Email, Roles: tc.Roles}
	if len(c.Roles) == 0 && tc.Role != "" {
		c.Roles = []string{tc.Role}
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
