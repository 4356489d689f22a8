package http

import (
	"net/http"
	"strings"

	"github.com/ekosmy/portfolio/internal/auth"
	authmw "github.com/ekosmy/portfolio/internal/auth/middleware"
	"github.com/ekosmy/portfolio/internal/logger"
	"github.com/ekosmy/portfolio/internal/restclient"
)

// LoginHandler trades credentials for a token at the auth service and
// hands both the token and the resolved user back to the browser, which
// keeps the token.
func LoginHandler(ac *auth.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cr auth.Credentials
		if !decode(w, r, &cr) {
			return
		}
		cr.Email = strings.TrimSpace(cr.Email)
		if cr.Email == "" || cr.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email and password required"})
			return
		}
		tok, err := ac.Login(r.Context(), cr)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u, err := ac.Me(restclient.WithToken(r.Context(), tok))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(u.Roles) == 0 {
			if c, err := auth.Inspect(tok); err == nil {
				u.Roles = c.Roles
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": u})
	}
}

func RegisterHandler(ac *auth.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cr auth.Credentials
		if !decode(w, r, &cr) {
			return
		}
		cr.Email = strings.TrimSpace(cr.Email)
		if cr.Email == "" || cr.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email and password required"})
			return
		}
		if err := ac.Register(r.Context(), cr); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	}
}

// LogoutHandler always succeeds for the browser: it drops its token either
// way, so a failed remote logout is only logged.
func LogoutHandler(ac *auth.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if restclient.TokenFromContext(r.Context()) != "" {
			if err := ac.Logout(r.Context()); err != nil {
				logger.Warnf("remote logout: %v", err)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := authmw.UserFromContext(r.Context())
		if !ok {
			authmw.Unauthorized(w, "not logged in")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u, "admin": u.IsAdmin()})
	}
}
