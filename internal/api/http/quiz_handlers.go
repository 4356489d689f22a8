package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
)

func ListQuizzesHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := quizapi.ListOpts{
			Page:       parseIntDefault(q.Get("page"), 0),
			Category:   strings.TrimSpace(q.Get("category")),
			Difficulty: strings.TrimSpace(q.Get("difficulty")),
		}
		list, err := api.ListQuizzes(r.Context(), opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []quiz.Quiz{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"quizzes": list, "page": opts.Page})
	}
}

func GetQuizHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qz, err := api.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": qz})
	}
}
