package restclient

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

var ErrTokenExpired = errors.New("bearer token expired")

type ctxKey struct{}

// WithToken pins a raw bearer token to ctx. It wins over the client's
// TokenSource, which is how the gateway forwards a browser's token.
func WithToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, ctxKey{}, raw)
}

func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

type bearerTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.resolve(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	if tok == nil {
		return t.base.RoundTrip(req)
	}
	tr := &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: t.base}
	return tr.RoundTrip(req)
}

func (t *bearerTransport) resolve(ctx context.Context) (*oauth2.Token, error) {
	if raw := TokenFromContext(ctx); raw != "" {
		return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
	}
	if t.tokens == nil {
		return nil, nil
	}
	tok, err := t.tokens.Token(ctx)
	if err != nil || tok == nil || tok.AccessToken == "" {
		return nil, err
	}
	if !tok.Expiry.IsZero() && !tok.Valid() {
		return nil, ErrTokenExpired
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return tok, nil
}
