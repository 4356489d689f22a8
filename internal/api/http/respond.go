package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/logger"
	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad json"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	if status >= 500 {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, body)
}

// errorBody maps an error to the three failure kinds the UI knows:
// authentication (redirect to /login), a retryable submission failure and
// a load failure (back to the quiz list). Anything else is a plain status.
func errorBody(err error) (int, map[string]any) {
	body := map[string]any{"error": restclient.MessageOf(err)}
	var (
		submitErr *session.SubmitError
		loadErr   *session.LoadError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn), restclient.IsUnauthorized(err):
		status = http.StatusUnauthorized
		if restclient.StatusOf(err) == http.StatusForbidden {
			status = http.StatusForbidden
		}
		body["redirect"] = "/login"
	case errors.Is(err, session.ErrNotOwner):
		status = http.StatusForbidden
	case errors.As(err, &submitErr):
		status = http.StatusBadGateway
		body["retryable"] = true
	case errors.As(err, &loadErr):
		status = http.StatusBadGateway
		body["back"] = "/quizzes"
	case session.IsNotRegistered(err), restclient.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, quizapi.ErrInvalid),
		errors.Is(err, quiz.ErrUnknownOption),
		errors.Is(err, quiz.ErrWrongAnswerKind),
		errors.Is(err, session.ErrAnswerRequired):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrFinished),
		errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrNotLoaded),
		errors.Is(err, session.ErrClosed):
		status = http.StatusConflict
	case restclient.StatusOf(err) != 0:
		status = http.StatusBadGateway
	}
	return status, body
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
