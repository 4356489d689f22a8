package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/session"
	syncx "github.com/ekosmy/portfolio/internal/sync"
)

func multiSnapshot() session.Snapshot {
	q := quiz.Question{ID: "q2", Type: quiz.TypeMulti, Text: "Reference types?", Options: []quiz.Option{
		{ID: "c", Text: "map"}, {ID: "d", Text: "int"},
	}}
	return session.Snapshot{
		Index: 1, Total: 4, Progress: 50,
		Question: &q,
		Answer:   &quiz.Answer{Kind: quiz.KindChoice, OptionIDs: []string{"c"}},
		Timed:    true, TimeLeft: 299, Clock: "4:59", LowTime: true,
	}
}

func TestRenderQuestion(t *testing.T) {
	var b bytes.Buffer
	renderQuestion(&b, multiSnapshot())
	out := b.String()

	assert.Contains(t, out, "Question 2 of 4  [##########..........] 50%")
	assert.Contains(t, out, "!! 4:59 left")
	assert.Contains(t, out, "[x] 1. map")
	assert.Contains(t, out, "[ ] 2. int")
	assert.Contains(t, out, "p previous")
}

func TestRenderShortQuestion(t *testing.T) {
	q := quiz.Question{ID: "q3", Type: quiz.TypeShort, Text: "Keyword for goroutines?"}
	s := session.Snapshot{Total: 1, Question: &q, IsFirst: true, IsLast: true}

	var b bytes.Buffer
	renderQuestion(&b, s)
	assert.Contains(t, b.String(), "answer: -")
	assert.Contains(t, b.String(), "type your answer")
	assert.Contains(t, b.String(), "n/enter finish")
	assert.NotContains(t, b.String(), "p previous")

	b.Reset()
	s.Answer = &quiz.Answer{Kind: quiz.KindText, Text: "go"}
	renderQuestion(&b, s)
	assert.Contains(t, b.String(), "answer: go")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "..........", progressBar(0, 10))
	assert.Equal(t, "#####.....", progressBar(50, 10))
	assert.Equal(t, "##########", progressBar(140, 10))
}

func TestTickWorthShowing(t *testing.T) {
	cases := []struct {
		left int
		low  bool
		want bool
	}{
		{left: 600, want: true},
		{left: 599, want: false},
		{left: 270, low: true, want: true},
		{left: 271, low: true, want: false},
		{left: 7, low: true, want: true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, tickWorthShowing(session.Snapshot{TimeLeft: c.left, LowTime: c.low}), "left=%d", c.left)
	}
}

func TestRenderResult(t *testing.T) {
	var b bytes.Buffer
	renderDetailed(&b, quiz.DetailedResult{
		Result:    quiz.Result{Score: 2, TotalQuestions: 3, Passed: true},
		Breakdown: []quiz.Breakdown{{QuestionID: "q1", IsCorrect: true}, {QuestionID: "q2"}},
	})
	assert.Contains(t, b.String(), "Result: 2/3 correct (66.7%), passed")
	assert.Contains(t, b.String(), " 2. wrong   q2")
}

func TestRenderProgressAndEvents(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	left := 90

	var b bytes.Buffer
	renderProgress(&b, []session.Progress{{
		SessionID: "s1", QuizID: "go", Index: 2, TimeLeft: &left,
		Answers:   map[int]quiz.Answer{0: {}, 1: {}},
		UpdatedAt: now.Add(-2 * time.Hour),
	}}, now)
	assert.Contains(t, b.String(), "1:30")
	assert.Contains(t, b.String(), "2 hours ago")

	b.Reset()
	renderEvents(&b, []syncx.Event{{Type: session.EventSessionStarted, Ref: "s1", DataJSON: "{}", CreatedAt: now.Add(-3 * time.Minute).Unix()}}, now)
	assert.Contains(t, b.String(), "3 minutes ago")
	assert.Contains(t, b.String(), session.EventSessionStarted)

	b.Reset()
	renderProgress(&b, nil, now)
	assert.Contains(t, b.String(), "no unfinished sessions")
}

func TestRenderSessions(t *testing.T) {
	score := 80.0
	end := "2026-01-01T12:05:30Z"
	var b bytes.Buffer
	renderSessions(&b, 2, []quiz.SessionSummary{
		{ID: "s1", UserID: "u1", Status: quiz.SessionCompleted, Score: &score, StartTime: "2026-01-01T12:00:00Z", EndTime: &end},
		{ID: "s2", UserID: "u2", Status: quiz.SessionOngoing, StartTime: "2026-01-01T12:01:00Z"},
	})
	out := b.String()
	assert.Contains(t, out, "2 sessions")
	assert.Contains(t, out, "5m30s")
	assert.Contains(t, out, "ongoing")
}
