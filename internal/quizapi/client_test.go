package quizapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/quizapi/quizapitest"
	"github.com/ekosmy/portfolio/internal/restclient"
)

func newClient(t *testing.T, srv *quizapitest.Server) *quizapi.Client {
	t.Helper()
	rest, err := restclient.New(srv.URL())
	require.NoError(t, err)
	return quizapi.NewClient(rest)
}

func ctxWith(token string) context.Context {
	return restclient.WithToken(context.Background(), token)
}

func intp(v int) *int { return &v }

func sampleQuestions() []quiz.Question {
	return []quiz.Question{
		{ID: "q1", Type: quiz.TypeSingle, Text: "2+2?", Options: []quiz.Option{
			{ID: "a", Text: "3"}, {ID: "b", Text: "4", IsCorrect: true},
		}},
		{ID: "q2", Type: quiz.TypeMulti, Text: "Primes?", Options: []quiz.Option{
			{ID: "c", Text: "2", IsCorrect: true}, {ID: "d", Text: "4"}, {ID: "e", Text: "5", IsCorrect: true},
		}},
		{ID: "q3", Type: quiz.TypeBool, Text: "Go has generics", Options: []quiz.Option{
			{ID: "t", Text: "True", IsCorrect: true},
		}},
		{ID: "q4", Type: quiz.TypeShort, Text: "Capital of France?"},
	}
}

func TestSessionFlow(t *testing.T) {
	srv := quizapitest.New()
	defer srv.Close()
	srv.UserToken = "user-tok"
	srv.ShortAnswers["q4"] = "paris"
	qz := srv.AddQuiz(quiz.Quiz{Title: "Basics", Category: "math", TimeLimit: intp(1), PassingScore: 50}, sampleQuestions()...)

	c := newClient(t, srv)
	ctx := ctxWith("user-tok")

	list, err := c.ListQuizzes(ctx, quizapi.ListOpts{Category: "math"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 60, list[0].TimeLimitSeconds())
	assert.Contains(t, srv.Calls(), "GET /quizzes?category=math&page=0")

	got, err := c.GetQuiz(ctx, qz.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basics", got.Title)

	sid, err := c.StartSession(ctx, qz.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	qs, err := c.SessionQuestions(ctx, sid)
	require.NoError(t, err)
	require.Len(t, qs, 4)
	// a bool question with one server option gets the synthetic pair
	require.Len(t, qs[2].Options, 2)
	assert.Equal(t, "true", qs[2].Options[0].ID)

	correct, err := c.SubmitAnswer(ctx, sid, quizapi.SubmitRequest{QuestionIndex: 0, Answer: quiz.Answer{Kind: quiz.KindChoice, OptionIDs: []string{"b"}}})
	require.NoError(t, err)
	assert.True(t, correct)
	_, err = c.SubmitAnswer(ctx, sid, quizapi.SubmitRequest{QuestionIndex: 3, Answer: quiz.Answer{Kind: quiz.KindText, Text: "Paris"}})
	require.NoError(t, err)

	res, err := c.FinishSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, quiz.Result{Score: 2, TotalQuestions: 4, Passed: true}, res)

	_, err = c.FinishSession(ctx, sid)
	require.Error(t, err)
	assert.Equal(t, "session already completed", restclient.MessageOf(err))

	detail, err := c.SessionResult(ctx, sid)
	require.NoError(t, err)
	require.Len(t, detail.Breakdown, 4)
	assert.True(t, detail.Breakdown[0].IsCorrect)
	assert.False(t, detail.Breakdown[1].IsCorrect)
}

func TestUnauthorized(t *testing.T) {
	srv := quizapitest.New()
	defer srv.Close()
	srv.UserToken = "user-tok"

	c := newClient(t, srv)
	_, err := c.ListQuizzes(context.Background(), quizapi.ListOpts{})
	require.Error(t, err)
	assert.True(t, restclient.IsUnauthorized(err))

	_, err = c.AdminListQuizzes(ctxWith("user-tok"))
	require.Error(t, err)
	assert.True(t, restclient.IsUnauthorized(err))
	assert.Equal(t, 403, restclient.StatusOf(err))
}

func TestSubmitRequest_Wire(t *testing.T) {
	cases := []struct {
		name string
		in   quizapi.SubmitRequest
		want string
	}{
		{"choice", quizapi.SubmitRequest{QuestionIndex: 1, Answer: quiz.Answer{Kind: quiz.KindChoice, OptionIDs: []string{"a", "b"}}}, `{"question_index":1,"selected_option_ids":["a","b"]}`},
		{"emptied multi", quizapi.SubmitRequest{QuestionIndex: 2, Answer: quiz.Answer{Kind: quiz.KindChoice}}, `{"question_index":2,"selected_option_ids":[]}`},
		{"text", quizapi.SubmitRequest{QuestionIndex: 0, Answer: quiz.Answer{Kind: quiz.KindText, Text: ""}}, `{"question_index":0,"answer_text":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))
		})
	}
}

func TestAdminCRUD(t *testing.T) {
	srv := quizapitest.New()
	defer srv.Close()
	srv.AdminToken = "admin-tok"
	c := newClient(t, srv)
	ctx := ctxWith("admin-tok")

	id, err := c.CreateQuiz(ctx, quizapi.QuizInput{Title: "Go", Difficulty: "easy", PassingScore: 70})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	title := "Go Advanced"
	q, err := c.UpdateQuiz(ctx, id, quizapi.QuizPatch{Title: &title, TimeLimit: intp(5)})
	require.NoError(t, err)
	assert.Equal(t, "Go Advanced", q.Title)
	assert.Equal(t, 300, q.TimeLimitSeconds())
	assert.Equal(t, 70, q.PassingScore, "unset fields are untouched")

	qid, err := c.AddQuestion(ctx, id, quizapi.QuestionInput{
		Type: quiz.TypeBool, Text: "Channels are typed",
		Options: []quizapi.OptionInput{{Text: "True", IsCorrect: true}, {Text: "False"}},
	})
	require.NoError(t, err)

	qs, err := c.AdminQuestions(ctx, id)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.True(t, bool(qs[0].Options[0].IsCorrect), "0/1 decoded")

	text := "Go channels are typed"
	uq, err := c.UpdateQuestion(ctx, id, qid, quizapi.QuestionPatch{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, text, uq.Text)

	require.NoError(t, c.DeleteQuestion(ctx, id, qid))
	qs, err = c.AdminQuestions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, qs)

	st, err := c.QuizStats(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, st.TotalAttempts)

	require.NoError(t, c.DeleteQuiz(ctx, id))
	_, err = c.AdminGetQuiz(ctx, id)
	assert.True(t, restclient.IsNotFound(err))
}

func TestAdminSessions(t *testing.T) {
	srv := quizapitest.New()
	defer srv.Close()
	qz := srv.AddQuiz(quiz.Quiz{Title: "T"}, sampleQuestions()[:1]...)
	c := newClient(t, srv)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sid, err := c.StartSession(ctx, qz.ID)
		require.NoError(t, err)
		ids = append(ids, sid)
	}
	_, err := c.FinishSession(ctx, ids[0])
	require.NoError(t, err)

	page, err := c.QuizSessions(ctx, qz.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Sessions, 2)
	assert.Contains(t, srv.Calls(), "GET /admin/quizzes/"+qz.ID+"/sessions?limit=2&offset=0")

	require.NoError(t, c.DeleteSession(ctx, ids[1]))
	page, err = c.QuizSessions(ctx, qz.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	var completed int
	for _, s := range page.Sessions {
		if s.Status == quiz.SessionCompleted {
			completed++
			_, ok := s.Duration()
			assert.True(t, ok)
		}
	}
	assert.Equal(t, 1, completed)
}

func TestValidation(t *testing.T) {
	srv := quizapitest.New()
	defer srv.Close()
	c := newClient(t, srv)
	ctx := context.Background()

	_, err := c.CreateQuiz(ctx, quizapi.QuizInput{Title: " "})
	assert.True(t, errors.Is(err, quizapi.ErrInvalid))
	_, err = c.CreateQuiz(ctx, quizapi.QuizInput{Title: "x", PassingScore: 101})
	assert.ErrorIs(t, err, quizapi.ErrInvalid)
	_, err = c.CreateQuiz(ctx, quizapi.QuizInput{Title: "x", TimeLimit: intp(0)})
	assert.ErrorIs(t, err, quizapi.ErrInvalid)

	bad := []quizapi.QuestionInput{
		{Type: quiz.TypeSingle, Text: ""},
		{Type: "essay", Text: "x"},
		{Type: quiz.TypeSingle, Text: "x", Options: []quizapi.OptionInput{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}},
		{Type: quiz.TypeMulti, Text: "x", Options: []quizapi.OptionInput{{Text: "a"}, {Text: "b"}}},
		{Type: quiz.TypeBool, Text: "x", Options: []quizapi.OptionInput{{Text: "True", IsCorrect: true}}},
		{Type: quiz.TypeShort, Text: "x", Options: []quizapi.OptionInput{{Text: "a"}}},
	}
	for i, in := range bad {
		_, err := c.AddQuestion(ctx, "quiz", in)
		assert.ErrorIs(t, err, quizapi.ErrInvalid, "case %d", i)
	}

	_, err = c.UpdateQuestion(ctx, "quiz", "q", quizapi.QuestionPatch{Options: []quizapi.OptionInput{{Text: "a", IsCorrect: true}}})
	assert.ErrorIs(t, err, quizapi.ErrInvalid, "type needed to check options")

	assert.Empty(t, srv.Calls(), "invalid input is never sent")
}
