package restclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx (or success=false) answer from a remote API.
type Error struct {
	Op      string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.cause }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsUnauthorized reports an authentication or authorization failure.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

// MessageOf returns the server supplied message, falling back to err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
