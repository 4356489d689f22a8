package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type QuestionType string

const (
	TypeSingle QuestionType = "mcq"   // one option
	TypeMulti  QuestionType = "multi" // zero or more options
	TypeBool   QuestionType = "bool"  // one of exactly two options
	TypeShort  QuestionType = "short" // free text
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeSingle, TypeMulti, TypeBool, TypeShort:
		return true
	}
	return false
}

// Label is the human name used in admin listings.
func (t QuestionType) Label() string {
	switch t {
	case TypeSingle:
		return "Multiple Choice"
	case TypeMulti:
		return "Multiple Answer"
	case TypeBool:
		return "True/False"
	case TypeShort:
		return "Short Answer"
	}
	return string(t)
}

type Quiz struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
	TimeLimit    *int   `json:"time_limit"` // minutes; nil = untimed
	PassingScore int    `json:"passing_score"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// TimeLimitSeconds returns the countdown length, or 0 for untimed quizzes.
func (q Quiz) TimeLimitSeconds() int {
	if q.TimeLimit == nil || *q.TimeLimit <= 0 {
		return 0
	}
	return *q.TimeLimit * 60
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id,omitempty"`
	Text       string `json:"option_text"`
	IsCorrect  Flag   `json:"is_correct"`
}

type Question struct {
	ID          string       `json:"id"`
	QuizID      string       `json:"quiz_id,omitempty"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"question_text"`
	Explanation string       `json:"explanation"`
	OrderIndex  int          `json:"order_index"`
	Options     []Option     `json:"options,omitempty"`
}

func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Result is the authoritative outcome returned by the quiz service.
type Result struct {
	Score          int  `json:"score"`
	TotalQuestions int  `json:"total_questions"`
	Passed         bool `json:"passed"`
}

// Percentage renders the score share with one decimal, e.g. "66.7".
func (r Result) Percentage() string {
	if r.TotalQuestions <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(r.Score)/float64(r.TotalQuestions)*100)
}

type Breakdown struct {
	QuestionID string `json:"question_id"`
	IsCorrect  bool   `json:"is_correct"`
}

type DetailedResult struct {
	Result
	Breakdown []Breakdown `json:"detailed_breakdown"`
}

type Stats struct {
	TotalAttempts  int     `json:"total_attempts"`
	AverageScore   float64 `json:"average_score"`
	PassRate       float64 `json:"pass_rate"`
	CompletionRate float64 `json:"completion_rate"`
}

type SessionStatus string

const (
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
)

// SessionSummary is the admin view of one attempt.
type SessionSummary struct {
	ID        string        `json:"id"`
	QuizID    string        `json:"quiz_id"`
	UserID    string        `json:"user_id"`
	Status    SessionStatus `json:"status"`
	Score     *float64      `json:"score"`
	StartTime string        `json:"start_time"`
	EndTime   *string       `json:"end_time"`
}

// Duration reports how long a completed session took. ok is false when the
// session is still running or the timestamps do not parse.
func (s SessionSummary) Duration() (d time.Duration, ok bool) {
	if s.EndTime == nil {
		return 0, false
	}
	start, err := time.Parse(time.RFC3339, s.StartTime)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339, *s.EndTime)
	if err != nil {
		return 0, false
	}
	return end.Sub(start), true
}

// Flag decodes is_correct, which the service sends as 0/1 on reads and
// accepts as a bool on writes.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true", "1", `"1"`, `"true"`:
		*f = true
	case "false", "0", "null", `"0"`, `"false"`, `""`:
		*f = false
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("is_correct: unexpected value %s", b)
		}
		*f = n != 0
	}
	return nil
}
