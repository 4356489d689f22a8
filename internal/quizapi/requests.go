package quizapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ekosmy/portfolio/internal/quiz"
)

var ErrInvalid = errors.New("invalid input")

func invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalid, field, msg)
}

// SubmitRequest is one answer report. Choice answers always carry
// selected_option_ids, text answers carry answer_text.
type SubmitRequest struct {
	QuestionIndex int
	Answer        quiz.Answer
}

func (r SubmitRequest) MarshalJSON() ([]byte, error) {
	type wire struct {
		QuestionIndex     int       `json:"question_index"`
		SelectedOptionIDs *[]string `json:"selected_option_ids,omitempty"`
		AnswerText        *string   `json:"answer_text,omitempty"`
	}
	w := wire{QuestionIndex: r.QuestionIndex}
	if r.Answer.IsText() {
		t := r.Answer.Text
		w.AnswerText = &t
	} else {
		ids := r.Answer.OptionIDs
		if ids == nil {
			ids = []string{}
		}
		w.SelectedOptionIDs = &ids
	}
	return json.Marshal(w)
}

type QuizInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
	TimeLimit    *int   `json:"time_limit,omitempty"`
	PassingScore int    `json:"passing_score"`
}

func (in QuizInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "is required")
	}
	return validateQuizNumbers(in.TimeLimit, &in.PassingScore)
}

// QuizPatch updates only the fields that are set.
type QuizPatch struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Category     *string `json:"category,omitempty"`
	Difficulty   *string `json:"difficulty,omitempty"`
	TimeLimit    *int    `json:"time_limit,omitempty"`
	PassingScore *int    `json:"passing_score,omitempty"`
}

func (p QuizPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalid("title", "must not be empty")
	}
	return validateQuizNumbers(p.TimeLimit, p.PassingScore)
}

func validateQuizNumbers(timeLimit, passing *int) error {
	if timeLimit != nil && *timeLimit <= 0 {
		return invalid("time_limit", "must be positive")
	}
	if passing != nil && (*passing < 0 || *passing > 100) {
		return invalid("passing_score", "must be between 0 and 100")
	}
	return nil
}

type OptionInput struct {
	Text      string `json:"option_text"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionInput struct {
	Type        quiz.QuestionType `json:"type"`
	Text        string            `json:"question_text"`
	Explanation string            `json:"explanation"`
	OrderIndex  int               `json:"order_index"`
	Options     []OptionInput     `json:"options,omitempty"`
}

func (in QuestionInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return invalid("question_text", "is required")
	}
	if !in.Type.Valid() {
		return invalid("type", fmt.Sprintf("%q is not one of mcq, multi, bool, short", in.Type))
	}
	return validateOptions(in.Type, in.Options)
}

// QuestionPatch updates only the fields that are set. Type is not sent;
// it is needed to check a replacement option set.
type QuestionPatch struct {
	Type        quiz.QuestionType `json:"-"`
	Text        *string           `json:"question_text,omitempty"`
	Explanation *string           `json:"explanation,omitempty"`
	OrderIndex  *int              `json:"order_index,omitempty"`
	Options     []OptionInput     `json:"options,omitempty"`
}

func (p QuestionPatch) Validate() error {
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return invalid("question_text", "must not be empty")
	}
	if p.Options == nil {
		return nil
	}
	if !p.Type.Valid() {
		return invalid("type", "is required to replace options")
	}
	return validateOptions(p.Type, p.Options)
}

func validateOptions(t quiz.QuestionType, opts []OptionInput) error {
	if t == quiz.TypeShort {
		if len(opts) > 0 {
			return invalid("options", "are not allowed on short answer questions")
		}
		return nil
	}
	correct := 0
	for i, o := range opts {
		if strings.TrimSpace(o.Text) == "" {
			return invalid(fmt.Sprintf("options[%d].option_text", i), "is required")
		}
		if o.IsCorrect {
			correct++
		}
	}
	switch t {
	case quiz.TypeBool:
		if len(opts) != 2 {
			return invalid("options", "must be exactly two for true/false")
		}
		if correct != 1 {
			return invalid("options", "need exactly one correct option")
		}
	case quiz.TypeSingle:
		if len(opts) < 2 {
			return invalid("options", "need at least two choices")
		}
		if correct != 1 {
			return invalid("options", "need exactly one correct option")
		}
	case quiz.TypeMulti:
		if len(opts) < 2 {
			return invalid("options", "need at least two choices")
		}
		if correct < 1 {
			return invalid("options", "need at least one correct option")
		}
	}
	return nil
}
