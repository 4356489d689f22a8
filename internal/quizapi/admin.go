package quizapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/restclient"
)

func adminQuizPath(id string) string { return "/admin/quizzes/" + url.PathEscape(id) }

func (c *Client) AdminListQuizzes(ctx context.Context) ([]quiz.Quiz, error) {
	var out struct {
		Quizzes []quiz.Quiz `json:"quizzes"`
	}
	err := c.rest.Do(ctx, "admin list quizzes", restclient.Request{Path: "/admin/quizzes"}, &out)
	return out.Quizzes, err
}

func (c *Client) AdminGetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	return c.getQuiz(ctx, "admin get quiz", adminQuizPath(id))
}

// CreateQuiz validates in and returns the new quiz id.
func (c *Client) CreateQuiz(ctx context.Context, in QuizInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	var out struct {
		Quiz struct {
			ID string `json:"id"`
		} `json:"quiz"`
	}
	err := c.rest.Do(ctx, "create quiz", restclient.Request{Method: http.MethodPost, Path: "/admin/quizzes", Body: in}, &out)
	return out.Quiz.ID, err
}

func (c *Client) UpdateQuiz(ctx context.Context, id string, p QuizPatch) (quiz.Quiz, error) {
	if err := p.Validate(); err != nil {
		return quiz.Quiz{}, err
	}
	var out struct {
		Quiz quiz.Quiz `json:"quiz"`
	}
	err := c.rest.Do(ctx, "update quiz", restclient.Request{Method: http.MethodPut, Path: adminQuizPath(id), Body: p}, &out)
	return out.Quiz, err
}

func (c *Client) DeleteQuiz(ctx context.Context, id string) error {
	return c.rest.Do(ctx, "delete quiz", restclient.Request{Method: http.MethodDelete, Path: adminQuizPath(id)}, nil)
}

func (c *Client) AddQuestion(ctx context.Context, quizID string, in QuestionInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	var out struct {
		Question struct {
			ID string `json:"id"`
		} `json:"question"`
	}
	r := restclient.Request{Method: http.MethodPost, Path: adminQuizPath(quizID) + "/question", Body: in}
	err := c.rest.Do(ctx, "add question", r, &out)
	return out.Question.ID, err
}

func (c *Client) AdminQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	var out struct {
		Questions []quiz.Question `json:"questions"`
	}
	err := c.rest.Do(ctx, "admin questions", restclient.Request{Path: adminQuizPath(quizID) + "/questions"}, &out)
	return out.Questions, err
}

func (c *Client) UpdateQuestion(ctx context.Context, quizID, questionID string, p QuestionPatch) (quiz.Question, error) {
	if err := p.Validate(); err != nil {
		return quiz.Question{}, err
	}
	var out struct {
		Question quiz.Question `json:"question"`
	}
	r := restclient.Request{Method: http.MethodPut, Path: adminQuizPath(quizID) + "/questions/" + url.PathEscape(questionID), Body: p}
	err := c.rest.Do(ctx, "update question", r, &out)
	return out.Question, err
}

func (c *Client) DeleteQuestion(ctx context.Context, quizID, questionID string) error {
	r := restclient.Request{Method: http.MethodDelete, Path: adminQuizPath(quizID) + "/questions/" + url.PathEscape(questionID)}
	return c.rest.Do(ctx, "delete question", r, nil)
}

func (c *Client) QuizStats(ctx context.Context, quizID string) (quiz.Stats, error) {
	var out quiz.Stats
	err := c.rest.Do(ctx, "quiz stats", restclient.Request{Path: adminQuizPath(quizID) + "/stats"}, &out)
	return out, err
}

// QuizSessions pages through a quiz's attempts. limit <= 0 uses 20.
func (c *Client) QuizSessions(ctx context.Context, quizID string, offset, limit int) (SessionPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{"offset": {strconv.Itoa(offset)}, "limit": {strconv.Itoa(limit)}}
	var out SessionPage
	err := c.rest.Do(ctx, "quiz sessions", restclient.Request{Path: adminQuizPath(quizID) + "/sessions", Query: q}, &out)
	return out, err
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	r := restclient.Request{Method: http.MethodDelete, Path: "/admin/sessions/" + url.PathEscape(sessionID)}
	return c.rest.Do(ctx, "delete session", r, nil)
}
