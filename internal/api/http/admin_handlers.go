package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/rbac"
)

// MountAdmin wires quiz, question and session management. Every route is
// gated by a permission; admin_quiz and admin roles hold them.
func MountAdmin(r chi.Router, api quizapi.API) {
	r.With(rbac.Require("quiz:admin")).Get("/quizzes", AdminListQuizzesHandler(api))
	r.With(rbac.Require("quiz:create")).Post("/quizzes", CreateQuizHandler(api))
	r.With(rbac.Require("quiz:admin")).Get("/quizzes/{quizID}", AdminGetQuizHandler(api))
	r.With(rbac.Require("quiz:update")).Put("/quizzes/{quizID}", UpdateQuizHandler(api))
	r.With(rbac.Require("quiz:delete")).Delete("/quizzes/{quizID}", DeleteQuizHandler(api))
	r.With(rbac.Require("quiz:admin")).Get("/quizzes/{quizID}/stats", QuizStatsHandler(api))

	r.With(rbac.Require("question:view")).Get("/quizzes/{quizID}/questions", AdminQuestionsHandler(api))
	r.With(rbac.Require("question:create")).Post("/quizzes/{quizID}/question", AddQuestionHandler(api))
	r.With(rbac.Require("question:update")).Put("/quizzes/{quizID}/questions/{questionID}", UpdateQuestionHandler(api))
	r.With(rbac.Require("question:delete")).Delete("/quizzes/{quizID}/questions/{questionID}", DeleteQuestionHandler(api))

	r.With(rbac.Require("session:view-all")).Get("/quizzes/{quizID}/sessions", QuizSessionsHandler(api))
	r.With(rbac.Require("session:delete")).Delete("/sessions/{sessionID}", DeleteSessionHandler(api))
}

func AdminListQuizzesHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := api.AdminListQuizzes(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []quiz.Quiz{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"quizzes": list})
	}
}

func AdminGetQuizHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qz, err := api.AdminGetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": qz})
	}
}

func CreateQuizHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in quizapi.QuizInput
		if !decode(w, r, &in) {
			return
		}
		id, err := api.CreateQuiz(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	}
}

func UpdateQuizHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p quizapi.QuizPatch
		if !decode(w, r, &p) {
			return
		}
		qz, err := api.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": qz})
	}
}

func DeleteQuizHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func QuizStatsHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := api.QuizStats(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stats": st})
	}
}

func AdminQuestionsHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := api.AdminQuestions(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if qs == nil {
			qs = []quiz.Question{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
	}
}

func AddQuestionHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in quizapi.QuestionInput
		if !decode(w, r, &in) {
			return
		}
		id, err := api.AddQuestion(r.Context(), chi.URLParam(r, "quizID"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	}
}

// UpdateQuestionHandler accepts the question type next to the patch; it is
// not forwarded but needed to check a replacement option set.
func UpdateQuestionHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			quizapi.QuestionPatch
			Type quiz.QuestionType `json:"type"`
		}
		if !decode(w, r, &req) {
			return
		}
		p := req.QuestionPatch
		p.Type = req.Type
		q, err := api.UpdateQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID"), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"question": q})
	}
}

func DeleteQuestionHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.DeleteQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func QuizSessionsHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := api.QuizSessions(r.Context(), chi.URLParam(r, "quizID"),
			parseIntDefault(q.Get("offset"), 0), parseIntDefault(q.Get("limit"), 20))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if page.Sessions == nil {
			page.Sessions = []quiz.SessionSummary{}
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func DeleteSessionHandler(api quizapi.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
