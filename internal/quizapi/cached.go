package quizapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekosmy/portfolio/internal/cache"
	"github.com/ekosmy/portfolio/internal/logger"
	"github.com/ekosmy/portfolio/internal/quiz"
)

const (
	prefixLists     = "quizzes:"
	prefixQuiz      = "quiz:"
	prefixQuestions = "questions:"
)

func listKey(o ListOpts) string {
	return fmt.Sprintf("%spage=%d&category=%s&difficulty=%s", prefixLists, o.Page, o.Category, o.Difficulty)
}

func quizKey(id string) string      { return prefixQuiz + id }
func adminQuizKey(id string) string { return prefixQuiz + id + ":admin" }
func questionsKey(id string) string { return prefixQuestions + id }

// Cached serves quiz lists, quiz details and admin question lists from a
// cache. Admin mutations drop the keys they touch. Session calls always go
// to the service. Cache failures are logged and fall through.
type Cached struct {
	API
	cache cache.Cache
	ttl   time.Duration
}

func NewCached(api API, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{API: api, cache: c, ttl: ttl}
}

func through[T any](ctx context.Context, c *Cached, key string, fetch func() (T, error)) (T, error) {
	if b, ok, err := c.cache.Get(ctx, key); err != nil {
		logger.Warnf("cache get %s: %v", key, err)
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		logger.Warnf("cache decode %s: dropping entry", key)
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			logger.Warnf("cache set %s: %v", key, err)
		}
	}
	return v, nil
}

func (c *Cached) forget(ctx context.Context, prefixes []string, keys ...string) {
	for _, p := range prefixes {
		if err := c.cache.DeletePrefix(ctx, p); err != nil {
			logger.Warnf("cache invalidate %s*: %v", p, err)
		}
	}
	if len(keys) > 0 {
		if err := c.cache.Delete(ctx, keys...); err != nil {
			logger.Warnf("cache invalidate %v: %v", keys, err)
		}
	}
}

func (c *Cached) ListQuizzes(ctx context.Context, o ListOpts) ([]quiz.Quiz, error) {
	return through(ctx, c, listKey(o), func() ([]quiz.Quiz, error) { return c.API.ListQuizzes(ctx, o) })
}

func (c *Cached) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	return through(ctx, c, quizKey(id), func() (quiz.Quiz, error) { return c.API.GetQuiz(ctx, id) })
}

func (c *Cached) AdminListQuizzes(ctx context.Context) ([]quiz.Quiz, error) {
	return through(ctx, c, prefixLists+"admin", func() ([]quiz.Quiz, error) { return c.API.AdminListQuizzes(ctx) })
}

func (c *Cached) AdminGetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	return through(ctx, c, adminQuizKey(id), func() (quiz.Quiz, error) { return c.API.AdminGetQuiz(ctx, id) })
}

func (c *Cached) AdminQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	return through(ctx, c, questionsKey(quizID), func() ([]quiz.Question, error) { return c.API.AdminQuestions(ctx, quizID) })
}

func (c *Cached) CreateQuiz(ctx context.Context, in QuizInput) (string, error) {
	id, err := c.API.CreateQuiz(ctx, in)
	if err == nil {
		c.forget(ctx, []string{prefixLists})
	}
	return id, err
}

func (c *Cached) UpdateQuiz(ctx context.Context, id string, p QuizPatch) (quiz.Quiz, error) {
	q, err := c.API.UpdateQuiz(ctx, id, p)
	if err == nil {
		c.forget(ctx, []string{prefixLists}, quizKey(id), adminQuizKey(id))
	}
	return q, err
}

func (c *Cached) DeleteQuiz(ctx context.Context, id string) error {
	err := c.API.DeleteQuiz(ctx, id)
	if err == nil {
		c.forget(ctx, []string{prefixLists}, quizKey(id), adminQuizKey(id), questionsKey(id))
	}
	return err
}

func (c *Cached) AddQuestion(ctx context.Context, quizID string, in QuestionInput) (string, error) {
	id, err := c.API.AddQuestion(ctx, quizID, in)
	if err == nil {
		c.forget(ctx, nil, questionsKey(quizID))
	}
	return id, err
}

func (c *Cached) UpdateQuestion(ctx context.Context, quizID, questionID string, p QuestionPatch) (quiz.Question, error) {
	q, err := c.API.UpdateQuestion(ctx, quizID, questionID, p)
	if err == nil {
		c.forget(ctx, nil, questionsKey(quizID))
	}
	return q, err
}

func (c *Cached) DeleteQuestion(ctx context.Context, quizID, questionID string) error {
	err := c.API.DeleteQuestion(ctx, quizID, questionID)
	if err == nil {
		c.forget(ctx, nil, questionsKey(quizID))
	}
	return err
}
