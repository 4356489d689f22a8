// Package quizapi is the typed client for the remote quiz service. All
// answers use the {success, result, message} envelope.
package quizapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/restclient"
)

const DefaultBaseURL = "https://quiz-prod.ekos.my.id/api/v1"

// API is implemented by Client and Cached.
type API interface {
	ListQuizzes(ctx context.Context, o ListOpts) ([]quiz.Quiz, error)
	GetQuiz(ctx context.Context, id string) (quiz.Quiz, error)
	StartSession(ctx context.Context, quizID string) (string, error)
	SessionQuestions(ctx context.Context, sessionID string) ([]quiz.Question, error)
	SubmitAnswer(ctx context.Context, sessionID string, req SubmitRequest) (bool, error)
	FinishSession(ctx context.Context, sessionID string) (quiz.Result, error)
	SessionResult(ctx context.Context, sessionID string) (quiz.DetailedResult, error)

	AdminListQuizzes(ctx context.Context) ([]quiz.Quiz, error)
	AdminGetQuiz(ctx context.Context, id string) (quiz.Quiz, error)
	CreateQuiz(ctx context.Context, in QuizInput) (string, error)
	UpdateQuiz(ctx context.Context, id string, p QuizPatch) (quiz.Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	AddQuestion(ctx context.Context, quizID string, in QuestionInput) (string, error)
	AdminQuestions(ctx context.Context, quizID string) ([]quiz.Question, error)
	UpdateQuestion(ctx context.Context, quizID, questionID string, p QuestionPatch) (quiz.Question, error)
	DeleteQuestion(ctx context.Context, quizID, questionID string) error
	QuizStats(ctx context.Context, quizID string) (quiz.Stats, error)
	QuizSessions(ctx context.Context, quizID string, offset, limit int) (SessionPage, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type Client struct {
	rest *restclient.Client
}

func NewClient(rest *restclient.Client) *Client { return &Client{rest: rest} }

// ListOpts filters the public quiz list. Page is zero based.
type ListOpts struct {
	Page       int
	Category   string
	Difficulty string
}

func (o ListOpts) values() url.Values {
	v := url.Values{"page": {strconv.Itoa(o.Page)}}
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	if o.Difficulty != "" {
		v.Set("difficulty", o.Difficulty)
	}
	return v
}

type SessionPage struct {
	Sessions []quiz.SessionSummary `json:"sessions"`
	Total    int                   `json:"total"`
}

func (c *Client) ListQuizzes(ctx context.Context, o ListOpts) ([]quiz.Quiz, error) {
	var out struct {
		Quizzes []quiz.Quiz `json:"quizzes"`
	}
	err := c.rest.Do(ctx, "list quizzes", restclient.Request{Path: "/quizzes", Query: o.values()}, &out)
	return out.Quizzes, err
}

func (c *Client) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	return c.getQuiz(ctx, "get quiz", "/quizzes/"+url.PathEscape(id))
}

func (c *Client) getQuiz(ctx context.Context, op, path string) (quiz.Quiz, error) {
	var out struct {
		Quiz quiz.Quiz `json:"quiz"`
	}
	err := c.rest.Do(ctx, op, restclient.Request{Path: path}, &out)
	return out.Quiz, err
}

func (c *Client) StartSession(ctx context.Context, quizID string) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	r := restclient.Request{Method: http.MethodPost, Path: "/quizzes/" + url.PathEscape(quizID) + "/start"}
	if err := c.rest.Do(ctx, "start session", r, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("start session: empty session_id")
	}
	return out.SessionID, nil
}

// SessionQuestions returns the session's questions in order with boolean
// questions normalized.
func (c *Client) SessionQuestions(ctx context.Context, sessionID string) ([]quiz.Question, error) {
	var out struct {
		Questions []quiz.Question `json:"questions"`
	}
	if err := c.rest.Do(ctx, "session questions", restclient.Request{Path: sessionPath(sessionID, "questions")}, &out); err != nil {
		return nil, err
	}
	for i := range out.Questions {
		out.Questions[i] = quiz.Normalize(out.Questions[i])
	}
	return out.Questions, nil
}

// SubmitAnswer reports one answer. The returned correctness flag is
// informational; the client does not show it.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, req SubmitRequest) (bool, error) {
	var out struct {
		IsCorrect bool `json:"is_correct"`
	}
	r := restclient.Request{Method: http.MethodPost, Path: sessionPath(sessionID, "answer"), Body: req}
	err := c.rest.Do(ctx, "submit answer", r, &out)
	return out.IsCorrect, err
}

func (c *Client) FinishSession(ctx context.Context, sessionID string) (quiz.Result, error) {
	var out quiz.Result
	err := c.rest.Do(ctx, "finish session", restclient.Request{Method: http.MethodPost, Path: sessionPath(sessionID, "finish")}, &out)
	return out, err
}

func (c *Client) SessionResult(ctx context.Context, sessionID string) (quiz.DetailedResult, error) {
	var out quiz.DetailedResult
	err := c.rest.Do(ctx, "session result", restclient.Request{Path: sessionPath(sessionID, "result")}, &out)
	return out, err
}

func sessionPath(sessionID, tail string) string {
	return "/session/" + url.PathEscape(sessionID) + "/" + tail
}
