package session

import (
	"github.com/ekosmy/portfolio/internal/quiz"
)

// Snapshot is an immutable view of a controller for rendering.
type Snapshot struct {
	SessionID  string              `json:"session_id"`
	QuizID     string              `json:"quiz_id"`
	State      State               `json:"state"`
	Quiz       quiz.Quiz           `json:"quiz"`
	Index      int                 `json:"index"`
	Total      int                 `json:"total"`
	Progress   float64             `json:"progress"`
	Question   *quiz.Question      `json:"question,omitempty"`
	Answer     *quiz.Answer        `json:"answer,omitempty"`
	Answers    map[int]quiz.Answer `json:"answers"`
	Answered   int                 `json:"answered"`
	CanAdvance bool                `json:"can_advance"`
	IsFirst    bool                `json:"is_first"`
	IsLast     bool                `json:"is_last"`
	Timed      bool                `json:"timed"`
	TimeLeft   int                 `json:"time_left"`
	Clock      string              `json:"clock,omitempty"`
	LowTime    bool                `json:"low_time"`
	Busy       bool                `json:"busy"`
	Result     *quiz.Result        `json:"result,omitempty"`
	Percentage string              `json:"percentage,omitempty"`
	Error      string              `json:"error,omitempty"`
	Retryable  bool                `json:"retryable,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID: c.sessionID,
		QuizID:    c.quizID,
		State:     c.state,
		Quiz:      c.quiz,
		Index:     c.index,
		Total:     len(c.questions),
		Answers:   quiz.Clone(c.answers),
		Answered:  len(c.answers),
		Timed:     c.timed,
		TimeLeft:  c.timeLeft,
		Busy:      c.submitting || c.finishing,
	}
	if s.Total > 0 {
		q := c.questions[c.index]
		q.Options = append([]quiz.Option(nil), q.Options...)
		s.Question = &q
		if a, ok := c.answers[c.index]; ok {
			a = a.Copy()
			s.Answer = &a
			s.CanAdvance = true
		}
		s.Progress = ProgressPercent(c.index, s.Total)
		s.IsFirst = c.index == 0
		s.IsLast = c.index == s.Total-1
	}
	if c.timed {
		s.Clock = FormatClock(c.timeLeft)
		s.LowTime = LowTime(c.timeLeft)
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
		s.Percentage = r.Percentage()
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
		s.Retryable = Retryable(c.lastErr)
	}
	return s
}
