// Package authmw gates gateway routes on the browser's bearer token. The
// token is never verified locally; the auth service's /me is the authority.
package authmw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/rbac"
	"github.com/ekosmy/portfolio/internal/restclient"
)

// Resolver looks up the user behind the token carried in ctx.
type Resolver interface {
	Me(ctx context.Context) (auth.User, error)
}

// Bearer forwards the request's bearer token to outgoing API calls.
func Bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := BearerToken(r); tok != "" {
			r = r.WithContext(restclient.WithToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// browsers cannot set headers on websocket upgrades
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RequireUser resolves the user and stores it, with its roles, in the
// request context. Missing or rejected tokens get a 401 pointing at /login.
func RequireUser(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if restclient.TokenFromContext(r.Context()) == "" {
				Unauthorized(w, "missing bearer")
				return
			}
			u, err := res.Me(r.Context())
			if err != nil {
				if restclient.IsUnauthorized(err) {
					Unauthorized(w, restclient.MessageOf(err))
					return
				}
				writeJSON(w, http.StatusBadGateway, map[string]any{"error": restclient.MessageOf(err)})
				return
			}
			ctx := WithUser(r.Context(), u)
			ctx = rbac.WithRoles(ctx, u.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Unauthorized writes the kind (a) failure the UI turns into a redirect.
func Unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": msg, "redirect": "/login"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
