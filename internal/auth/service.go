package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ekosmy/portfolio/internal/restclient"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNoToken     = errors.New("login response carried no token")
)

// Service keeps the local login state for one profile.
type Service struct {
	client  *Client
	store   TokenStore
	profile string
	now     func() time.Time
}

func NewService(client *Client, store TokenStore, profile string) *Service {
	if profile == "" {
		profile = "default"
	}
	return &Service{client: client, store: store, profile: profile, now: time.Now}
}

func (s *Service) Register(ctx context.Context, cr Credentials) error {
	cr.Email = strings.TrimSpace(cr.Email)
	if cr.Email == "" || cr.Password == "" {
		return errors.New("register: email and password required")
	}
	return s.client.Register(ctx, cr)
}

// Login exchanges credentials for a token, persists it and returns the
// freshly resolved user.
func (s *Service) Login(ctx context.Context, cr Credentials) (User, error) {
	cr.Email = strings.TrimSpace(cr.Email)
	if cr.Email == "" || cr.Password == "" {
		return User{}, errors.New("login: email and password required")
	}
	tok, err := s.client.Login(ctx, cr)
	if err != nil {
		return User{}, err
	}
	if err := s.store.Save(ctx, s.profile, tok); err != nil {
		return User{}, fmt.Errorf("login: save token: %w", err)
	}
	return s.Current(ctx)
}

// Logout tells the auth service and always drops the local token, even
// when the remote call fails. The remote error is still returned.
func (s *Service) Logout(ctx context.Context) error {
	raw, err := s.store.Load(ctx, s.profile)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	var remote error
	if raw != "" && !expiredRaw(raw, s.now()) {
		remote = s.client.Logout(ctx)
	}
	if err := s.store.Clear(ctx, s.profile); err != nil {
		return fmt.Errorf("logout: clear token: %w", err)
	}
	if remote != nil {
		return fmt.Errorf("logout: %w", remote)
	}
	return nil
}

// Current resolves the logged in user. Roles missing from /me are filled
// from the token claims.
func (s *Service) Current(ctx context.Context) (User, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return User{}, err
	}
	if tok == nil || expired(tok, s.now()) {
		return User{}, ErrNotLoggedIn
	}
	u, err := s.client.Me(ctx)
	if err != nil {
		if restclient.IsUnauthorized(err) {
			return User{}, fmt.Errorf("%w: %v", ErrNotLoggedIn, err)
		}
		return User{}, err
	}
	if len(u.Roles) == 0 {
		if c, err := Inspect(tok.AccessToken); err == nil {
			u.Roles = c.Roles
		}
	}
	return u, nil
}

// Token implements restclient.TokenSource over the persisted token. It
// returns nil, nil when nobody is logged in.
func (s *Service) Token(ctx context.Context) (*oauth2.Token, error) {
	return storeToken(ctx, s.store, s.profile)
}

// StoreTokenSource exposes a store's token to restclient without needing a
// Service, which itself needs a client built on that token source.
func StoreTokenSource(store TokenStore, profile string) restclient.TokenSource {
	return restclient.TokenSourceFunc(func(ctx context.Context) (*oauth2.Token, error) {
		return storeToken(ctx, store, profile)
	})
}

func storeToken(ctx context.Context, store TokenStore, profile string) (*oauth2.Token, error) {
	raw, err := store.Load(ctx, profile)
	if err != nil || raw == "" {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if c, err := Inspect(raw); err == nil {
		tok.Expiry = c.ExpiresAt
	}
	return tok, nil
}

func expired(tok *oauth2.Token, now time.Time) bool {
	return !tok.Expiry.IsZero() && !tok.Expiry.After(now)
}

func expiredRaw(raw string, now time.Time) bool {
	c, err := Inspect(raw)
	return err == nil && !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}
