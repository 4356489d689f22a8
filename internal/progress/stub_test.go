package progress

import (
	"context"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
)

type stubAPI struct {
	quiz      quiz.Quiz
	questions []quiz.Question
}

func (s *stubAPI) GetQuiz(context.Context, string) (quiz.Quiz, error) { return s.quiz, nil }

func (s *stubAPI) SessionQuestions(context.Context, string) ([]quiz.Question, error) {
	return s.questions, nil
}

func (s *stubAPI) SubmitAnswer(context.Context, string, quizapi.SubmitRequest) (bool, error) {
	return true, nil
}

func (s *stubAPI) FinishSession(context.Context, string) (quiz.Result, error) {
	return quiz.Result{TotalQuestions: len(s.questions)}, nil
}
