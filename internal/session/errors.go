package session

import (
	"errors"
	"fmt"
)

var (
	ErrAnswerRequired = errors.New("answer the current question before moving on")
	ErrBusy           = errors.New("a request for this session is already in flight")
	ErrFinished       = errors.New("session already finished")
	ErrExpired        = errors.New("time is up")
	ErrNotLoaded      = errors.New("session is not loaded")
	ErrClosed         = errors.New("session controller closed")
	ErrNoQuestions    = errors.New("session has no questions")
	ErrUnknownQuiz    = errors.New("quiz id unknown for session")
)

// SubmitError is a failed answer report. The answer and position are kept
// so the same Next can be retried.
type SubmitError struct {
	Index int
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit answer %d: %v", e.Index+1, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

func (e *SubmitError) Retryable() bool { return true }

// LoadError means the session could not be opened at all.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load session: %s: %v", e.Op, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable reports whether err is a failure the user may simply retry.
func Retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
