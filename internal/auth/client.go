package auth

import (
	"context"
	"net/http"

	"github.com/ekosmy/portfolio/internal/restclient"
)

const DefaultBaseURL = "https://auth-prod.ekos.my.id/api/v1"

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
}

func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is true for full admins and quiz admins.
func (u User) IsAdmin() bool { return u.HasRole("admin") || u.HasRole("admin_quiz") }

// Client talks to the authentication API. Its endpoints answer with bare
// JSON, not the quiz service envelope.
type Client struct {
	rest *restclient.Client
}

func NewClient(rest *restclient.Client) *Client { return &Client{rest: rest} }

func (c *Client) Register(ctx context.Context, cr Credentials) error {
	return c.rest.DoRaw(ctx, "register", restclient.Request{Method: http.MethodPost, Path: "/register", Body: cr}, nil)
}

// Login returns the issued token. The service names it session_token or
// token depending on version.
func (c *Client) Login(ctx context.Context, cr Credentials) (string, error) {
	var out struct {
		SessionToken string `json:"session_token"`
		Token        string `json:"token"`
	}
	if err := c.rest.DoRaw(ctx, "login", restclient.Request{Method: http.MethodPost, Path: "/login", Body: cr}, &out); err != nil {
		return "", err
	}
	if out.SessionToken != "" {
		return out.SessionToken, nil
	}
	if out.Token != "" {
		return out.Token, nil
	}
	return "", ErrNoToken
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.rest.DoRaw(ctx, "me", restclient.Request{Path: "/me"}, &u)
	return u, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.rest.DoRaw(ctx, "logout", restclient.Request{Method: http.MethodPost, Path: "/logout"}, nil)
}
