package quiz

import (
	"errors"
	"strings"
)

var (
	ErrUnknownOption   = errors.New("option does not belong to question")
	ErrWrongAnswerKind = errors.New("answer kind does not match question type")
)

// Cardinality is how many values an answer to a question may hold.
type Cardinality int

const (
	One  Cardinality = iota // exactly one option id
	Many                    // zero or more option ids
	Free                    // exactly one text value
)

// Cardinality resolves the rule for q. Types the client does not know fall
// back to single choice when options exist and free text otherwise.
func (q Question) Cardinality() Cardinality {
	switch q.Type {
	case TypeSingle, TypeBool:
		return One
	case TypeMulti:
		return Many
	case TypeShort:
		return Free
	}
	if len(q.Options) > 0 {
		return One
	}
	return Free
}

type AnswerKind string

const (
	KindChoice AnswerKind = "choice"
	KindText   AnswerKind = "text"
)

// Answer is the locally held response to one question.
type Answer struct {
	Kind      AnswerKind `json:"kind"`
	OptionIDs []string   `json:"option_ids,omitempty"`
	Text      string     `json:"text,omitempty"`
}

func (a Answer) IsText() bool { return a.Kind == KindText }

func (a Answer) Selected(id string) bool {
	for _, s := range a.OptionIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Equal compares choice answers as sets.
func (a Answer) Equal(b Answer) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindText {
		return a.Text == b.Text
	}
	if len(a.OptionIDs) != len(b.OptionIDs) {
		return false
	}
	for _, id := range a.OptionIDs {
		if !b.Selected(id) {
			return false
		}
	}
	return true
}

// Copy returns a with its own option slice.
func (a Answer) Copy() Answer {
	out := a
	if a.OptionIDs != nil {
		out.OptionIDs = append([]string(nil), a.OptionIDs...)
	}
	return out
}

// Select applies a click on optionID to prev (the current answer, possibly
// the zero value) and returns the new answer. Single choice replaces, multi
// choice toggles.
func Select(q Question, prev Answer, optionID string) (Answer, error) {
	card := q.Cardinality()
	if card == Free {
		return Answer{}, ErrWrongAnswerKind
	}
	if !q.HasOption(optionID) {
		return Answer{}, ErrUnknownOption
	}
	if card == One {
		return Answer{Kind: KindChoice, OptionIDs: []string{optionID}}, nil
	}

	ids := make([]string, 0, len(prev.OptionIDs)+1)
	found := false
	if prev.Kind == KindChoice {
		for _, id := range prev.OptionIDs {
			if id == optionID {
				found = true
				continue
			}
			ids = append(ids, id)
		}
	}
	if !found {
		ids = append(ids, optionID)
	}
	return Answer{Kind: KindChoice, OptionIDs: ids}, nil
}

// Text records a free-text answer.
func Text(q Question, text string) (Answer, error) {
	if q.Cardinality() != Free {
		return Answer{}, ErrWrongAnswerKind
	}
	return Answer{Kind: KindText, Text: text}, nil
}

// Validate reports whether a holds a shape allowed for q.
func Validate(q Question, a Answer) error {
	switch q.Cardinality() {
	case Free:
		if a.Kind != KindText || len(a.OptionIDs) != 0 {
			return ErrWrongAnswerKind
		}
		return nil
	case One:
		if a.Kind != KindChoice || len(a.OptionIDs) != 1 {
			return ErrWrongAnswerKind
		}
	case Many:
		if a.Kind != KindChoice || a.Text != "" {
			return ErrWrongAnswerKind
		}
	}
	seen := map[string]bool{}
	for _, id := range a.OptionIDs {
		if !q.HasOption(id) {
			return ErrUnknownOption
		}
		if seen[id] {
			return ErrWrongAnswerKind
		}
		seen[id] = true
	}
	return nil
}

// Normalize gives boolean questions their two synthetic options when the
// service did not send exactly two.
func Normalize(q Question) Question {
	if q.Type != TypeBool || len(q.Options) == 2 {
		return q
	}
	var isTrue, isFalse bool
	for _, o := range q.Options {
		if bool(o.IsCorrect) {
			isTrue = strings.EqualFold(o.Text, "true")
			isFalse = !isTrue
			break
		}
	}
	q.Options = []Option{
		{ID: "true", QuestionID: q.ID, Text: "True", IsCorrect: Flag(isTrue)},
		{ID: "false", QuestionID: q.ID, Text: "False", IsCorrect: Flag(isFalse)},
	}
	return q
}

// Clone copies an answer map.
func Clone(m map[int]Answer) map[int]Answer {
	out := make(map[int]Answer, len(m))
	for k, v := range m {
		out[k] = v.Copy()
	}
	return out
}
