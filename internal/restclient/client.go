// Package restclient is the JSON transport shared by the auth and quiz API
// clients. It resolves the bearer token per request, tags each call with a
// request id and turns non-2xx answers into *Error values.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const DefaultTimeout = 15 * time.Second

// TokenSource supplies the persisted bearer token. A nil token means the
// request goes out anonymously.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

type TokenSourceFunc func(ctx context.Context) (*oauth2.Token, error)

func (f TokenSourceFunc) Token(ctx context.Context) (*oauth2.Token, error) { return f(ctx) }

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("restclient: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("restclient: base url %q must be absolute", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: DefaultTimeout}}
	for _, o := range opts {
		o(c)
	}
	// copy so a shared *http.Client is never mutated
	h := *c.http
	base := h.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	h.Transport = &bearerTransport{base: base, tokens: c.tokens}
	c.http = &h
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

// Request describes one call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type envelope struct {
	Success *bool           `json:"success"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Do sends r and decodes the `result` member of the {success, result}
// envelope into out (which may be nil).
func (c *Client) Do(ctx context.Context, op string, r Request, out any) error {
	body, status, err := c.send(ctx, op, r)
	if err != nil {
		return err
	}
	var env envelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	if env.Success != nil && !*env.Success {
		return &Error{Op: op, Status: status, Message: firstNonEmpty(env.Message, env.Error, "request unsuccessful")}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", op, err)
	}
	return nil
}

// DoRaw is Do for endpoints that answer with a bare JSON document.
func (c *Client) DoRaw(ctx context.Context, op string, r Request, out any) error {
	body, _, err := c.send(ctx, op, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, op string, r Request) ([]byte, int, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var rd io.Reader
	if r.Body != nil {
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: encode: %w", op, err)
		}
		rd = bytes.NewReader(buf)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, 0, &Error{Op: op, Status: http.StatusUnauthorized, Message: "session expired", cause: err}
		}
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("%s: read body: %w", op, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, res.StatusCode, &Error{Op: op, Status: res.StatusCode, Message: messageFrom(body, res.Status)}
	}
	return body, res.StatusCode, nil
}

func messageFrom(body []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if m := firstNonEmpty(env.Message, env.Error); m != "" {
			return m
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 && !strings.HasPrefix(s, "<") {
		return s
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
