// Package quizapitest runs an in-memory quiz service for tests. It speaks
// the same envelope and routes as the real service.
package quizapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
)

const pageSize = 10

// Submit is one recorded answer report, decoded loosely so tests can check
// which members were present on the wire.
type Submit struct {
	SessionID string
	Body      map[string]any
}

type Session struct {
	ID        string
	QuizID    string
	UserToken string
	Answers   map[int]quiz.Answer
	Result    *quiz.Result
	Started   time.Time
	Ended     *time.Time
}

// Server is safe for concurrent use. Exported counters and knobs are read
// and written through Lock/Unlock or the helper methods.
type Server struct {
	mu sync.Mutex

	quizzes   []quiz.Quiz
	questions map[string][]quiz.Question
	sessions  map[string]*Session
	submits   []Submit
	finishes  int
	calls     []string

	// ShortAnswers holds the expected text per question id.
	ShortAnswers map[string]string

	// UserToken and AdminToken, when set, are the only bearer tokens
	// accepted. Admin routes need AdminToken.
	UserToken  string
	AdminToken string

	failSubmit int
	failFinish int
	block      chan struct{}

	ts *httptest.Server
}

func New() *Server {
	s := &Server{
		questions:    map[string][]quiz.Question{},
		sessions:     map[string]*Session{},
		ShortAnswers: map[string]string{},
	}
	s.ts = httptest.NewServer(s.routes())
	return s
}

func (s *Server) URL() string { return s.ts.URL }
func (s *Server) Close()      { s.ts.Close() }

// AddQuiz registers a quiz and its questions. Question and option ids are
// kept when set and generated otherwise.
func (s *Server) AddQuiz(q quiz.Quiz, qs ...quiz.Question) quiz.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt == "" {
		q.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = uuid.NewString()
		}
		qs[i].QuizID = q.ID
		qs[i].OrderIndex = i
		for j := range qs[i].Options {
			if qs[i].Options[j].ID == "" {
				qs[i].Options[j].ID = uuid.NewString()
			}
			qs[i].Options[j].QuestionID = qs[i].ID
		}
	}
	s.quizzes = append(s.quizzes, q)
	s.questions[q.ID] = qs
	return q
}

// FailSubmits makes the next n answer reports fail with 500.
func (s *Server) FailSubmits(n int) {
	s.mu.Lock()
	s.failSubmit = n
	s.mu.Unlock()
}

// FailFinishes makes the next n finish calls fail with 500.
func (s *Server) FailFinishes(n int) {
	s.mu.Lock()
	s.failFinish = n
	s.mu.Unlock()
}

// Block holds answer and finish handlers until the returned func is called.
func (s *Server) Block() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.block = nil
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) Submits() []Submit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submit(nil), s.submits...)
}

func (s *Server) Finishes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishes
}

func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount counts recorded calls with the given "METHOD /path" prefix.
func (s *Server) CallCount(prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := *se
	out.Answers = quiz.Clone(se.Answers)
	return out, true
}

func (s *Server) Questions(quizID string) []quiz.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quiz.Question(nil), s.questions[quizID]...)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken(false))
		r.Get("/quizzes", s.listQuizzes)
		r.Get("/quizzes/{id}", s.getQuiz)
		r.Post("/quizzes/{id}/start", s.start)
		r.Get("/session/{sid}/questions", s.sessionQuestions)
		r.Post("/session/{sid}/answer", s.answer)
		r.Post("/session/{sid}/finish", s.finish)
		r.Get("/session/{sid}/result", s.result)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireToken(true))
		r.Get("/quizzes", s.adminList)
		r.Post("/quizzes", s.createQuiz)
		r.Get("/quizzes/{id}", s.getQuiz)
		r.Put("/quizzes/{id}", s.updateQuiz)
		r.Delete("/quizzes/{id}", s.deleteQuiz)
		r.Post("/quizzes/{id}/question", s.addQuestion)
		r.Get("/quizzes/{id}/questions", s.adminQuestions)
		r.Put("/quizzes/{id}/questions/{qid}", s.updateQuestion)
		r.Delete("/quizzes/{id}/questions/{qid}", s.deleteQuestion)
		r.Get("/quizzes/{id}/stats", s.stats)
		r.Get("/quizzes/{id}/sessions", s.listSessions)
		r.Delete("/sessions/{sid}", s.deleteSession)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.RequestURI())
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			user, adm := s.UserToken, s.AdminToken
			s.mu.Unlock()
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			switch {
			case user == "" && adm == "":
			case got == adm && adm != "":
			case admin:
				fail(w, http.StatusForbidden, "admin role required")
				return
			case got == user && user != "":
			default:
				fail(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ok(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": true}
	if result != nil {
		body["result"] = result
	}
	_ = json.NewEncoder(w).Encode(body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}

func (s *Server) quizByID(id string) (int, bool) {
	for i, q := range s.quizzes {
		if q.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) listQuizzes(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	cat, diff := r.URL.Query().Get("category"), r.URL.Query().Get("difficulty")
	s.mu.Lock()
	var all []quiz.Quiz
	for _, q := range s.quizzes {
		if (cat == "" || q.Category == cat) && (diff == "" || q.Difficulty == diff) {
			all = append(all, q)
		}
	}
	s.mu.Unlock()
	lo := page * pageSize
	if lo > len(all) {
		lo = len(all)
	}
	hi := lo + pageSize
	if hi > len(all) {
		hi = len(all)
	}
	ok(w, http.StatusOK, map[string]any{"quizzes": nonNil(all[lo:hi])})
}

func (s *Server) adminList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	all := append([]quiz.Quiz(nil), s.quizzes...)
	s.mu.Unlock()
	ok(w, http.StatusOK, map[string]any{"quizzes": nonNil(all)})
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, found := s.quizByID(chi.URLParam(r, "id"))
	if !found {
		fail(w, http.StatusNotFound, "quiz not found")
		return
	}
	ok(w, http.StatusOK, map[string]any{"quiz": s.quizzes[i]})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, found := s.quizByID(id); !found {
		fail(w, http.StatusNotFound, "quiz not found")
		return
	}
	se := &Session{
		ID:        uuid.NewString(),
		QuizID:    id,
		UserToken: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		Answers:   map[int]quiz.Answer{},
		Started:   time.Now().UTC(),
	}
	s.sessions[se.ID] = se
	ok(w, http.StatusCreated, map[string]any{"session_id": se.ID})
}

// wireQuestion renders options the way the service does: is_correct as 0/1.
type wireOption struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"option_text"`
	IsCorrect  int    `json:"is_correct"`
}

type wireQuestion struct {
	ID          string            `json:"id"`
	QuizID      string            `json:"quiz_id"`
	Type        quiz.QuestionType `json:"type"`
	Text        string            `json:"question_text"`
	Explanation string            `json:"explanation"`
	OrderIndex  int               `json:"order_index"`
	Options     []wireOption      `json:"options,omitempty"`
}

func toWire(qs []quiz.Question, reveal bool) []wireQuestion {
	out := make([]wireQuestion, 0, len(qs))
	for _, q := range qs {
		wq := wireQuestion{ID: q.ID, QuizID: q.QuizID, Type: q.Type, Text: q.Text, Explanation: q.Explanation, OrderIndex: q.OrderIndex}
		for _, o := range q.Options {
			c := 0
			if reveal && bool(o.IsCorrect) {
				c = 1
			}
			wq.Options = append(wq.Options, wireOption{ID: o.ID, QuestionID: q.ID, Text: o.Text, IsCorrect: c})
		}
		out = append(out, wq)
	}
	return out
}

func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	se, found := s.sessions[chi.URLParam(r, "sid")]
	if !found {
		fail(w, http.StatusNotFound, "session not found")
	}
	return se, found
}

func (s *Server) sessionQuestions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, found := s.sessionFor(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, map[string]any{"questions": toWire(s.questions[se.QuizID], false)})
}

func (s *Server) waitBlock() {
	s.mu.Lock()
	ch := s.block
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.waitBlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	se, found := s.sessionFor(w, r)
	if !found {
		return
	}
	if s.failSubmit > 0 {
		s.failSubmit--
		fail(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	if se.Result != nil {
		fail(w, http.StatusBadRequest, "session already completed")
		return
	}
	idxF, _ := body["question_index"].(float64)
	idx := int(idxF)
	qs := s.questions[se.QuizID]
	if idx < 0 || idx >= len(qs) {
		fail(w, http.StatusBadRequest, "question_index out of range")
		return
	}
	s.submits = append(s.submits, Submit{SessionID: se.ID, Body: body})

	var a quiz.Answer
	if t, isText := body["answer_text"].(string); isText {
		a = quiz.Answer{Kind: quiz.KindText, Text: t}
	} else {
		a.Kind = quiz.KindChoice
		ids, _ := body["selected_option_ids"].([]any)
		for _, id := range ids {
			if sid, isStr := id.(string); isStr {
				a.OptionIDs = append(a.OptionIDs, sid)
			}
		}
	}
	se.Answers[idx] = a
	ok(w, http.StatusOK, map[string]any{"is_correct": s.correct(qs[idx], a)})
}

func (s *Server) correct(q quiz.Question, a quiz.Answer) bool {
	if a.IsText() {
		want, has := s.ShortAnswers[q.ID]
		return has && strings.EqualFold(strings.TrimSpace(a.Text), want)
	}
	var want []string
	for _, o := range q.Options {
		if o.IsCorrect {
			want = append(want, o.ID)
		}
	}
	return len(want) > 0 && a.Equal(quiz.Answer{Kind: quiz.KindChoice, OptionIDs: want})
}

func (s *Server) score(se *Session) quiz.Result {
	qs := s.questions[se.QuizID]
	res := quiz.Result{TotalQuestions: len(qs)}
	for i, q := range qs {
		if a, has := se.Answers[i]; has && s.correct(q, a) {
			res.Score++
		}
	}
	passing := 0
	if i, found := s.quizByID(se.QuizID); found {
		passing = s.quizzes[i].PassingScore
	}
	res.Passed = res.TotalQuestions > 0 && res.Score*100 >= passing*res.TotalQuestions
	return res
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	s.waitBlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	se, found := s.sessionFor(w, r)
	if !found {
		return
	}
	if s.failFinish > 0 {
		s.failFinish--
		fail(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	if se.Result != nil {
		fail(w, http.StatusBadRequest, "session already completed")
		return
	}
	s.finishes++
	res := s.score(se)
	now := time.Now().UTC()
	se.Result, se.Ended = &res, &now
	ok(w, http.StatusOK, res)
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, found := s.sessionFor(w, r)
	if !found {
		return
	}
	if se.Result == nil {
		fail(w, http.StatusBadRequest, "session not completed")
		return
	}
	out := quiz.DetailedResult{Result: *se.Result}
	for i, q := range s.questions[se.QuizID] {
		a, has := se.Answers[i]
		out.Breakdown = append(out.Breakdown, quiz.Breakdown{QuestionID: q.ID, IsCorrect: has && s.correct(q, a)})
	}
	ok(w, http.StatusOK, out)
}

func (s *Server) createQuiz(w http.ResponseWriter, r *http.Request) {
	var in quizapi.QuizInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == "" {
		fail(w, http.StatusBadRequest, "title is required")
		return
	}
	q := s.AddQuiz(quiz.Quiz{
		Title: in.Title, Description: in.Description, Category: in.Category,
		Difficulty: in.Difficulty, TimeLimit: in.TimeLimit, PassingScore: in.PassingScore,
	})
	ok(w, http.StatusCreated, map[string]any{"quiz": map[string]string{"id": q.ID}})
}

func (s *Server) updateQuiz(w http.ResponseWriter, r *http.Request) {
	var p quizapi.QuizPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, found := s.quizByID(chi.URLParam(r, "id"))
	if !found {
		fail(w, http.StatusNotFound, "quiz not found")
		return
	}
	q := &s.quizzes[i]
	if p.Title != nil {
		q.Title = *p.Title
	}
	if p.Description != nil {
		q.Description = *p.Description
	}
	if p.Category != nil {
		q.Category = *p.Category
	}
	if p.Difficulty != nil {
		q.Difficulty = *p.Difficulty
	}
	if p.TimeLimit != nil {
		tl := *p.TimeLimit
		q.TimeLimit = &tl
	}
	if p.PassingScore != nil {
		q.PassingScore = *p.PassingScore
	}
	ok(w, http.StatusOK, map[string]any{"quiz": *q})
}

func (s *Server) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	i, found := s.quizByID(id)
	if !found {
		fail(w, http.StatusNotFound, "quiz not found")
		return
	}
	s.quizzes = append(s.quizzes[:i], s.quizzes[i+1:]...)
	delete(s.questions, id)
	ok(w, http.StatusOK, nil)
}

func fromInput(quizID string, order int, t quiz.QuestionType, text, expl string, opts []quizapi.OptionInput) quiz.Question {
	q := quiz.Question{ID: uuid.NewString(), QuizID: quizID, Type: t, Text: text, Explanation: expl, OrderIndex: order}
	for _, o := range opts {
		q.Options = append(q.Options, quiz.Option{ID: uuid.NewString(), QuestionID: q.ID, Text: o.Text, IsCorrect: quiz.Flag(o.IsCorrect)})
	}
	return q
}

func (s *Server) addQuestion(w http.ResponseWriter, r *http.Request) {
	var in quizapi.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, found := s.quizByID(id); !found {
		fail(w, http.StatusNotFound, "quiz not found")
		return
	}
	q := fromInput(id, in.OrderIndex, in.Type, in.Text, in.Explanation, in.Options)
	s.questions[id] = append(s.questions[id], q)
	sort.SliceStable(s.questions[id], func(a, b int) bool {
		return s.questions[id][a].OrderIndex < s.questions[id][b].OrderIndex
	})
	ok(w, http.StatusCreated, map[string]any{"question": map[string]string{"id": q.ID}})
}

func (s *Server) adminQuestions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(w, http.StatusOK, map[string]any{"questions": toWire(s.questions[chi.URLParam(r, "id")], true)})
}

func (s *Server) findQuestion(quizID, qid string) int {
	for i, q := range s.questions[quizID] {
		if q.ID == qid {
			return i
		}
	}
	return -1
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var p quizapi.QuestionPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID := chi.URLParam(r, "id")
	i := s.findQuestion(quizID, chi.URLParam(r, "qid"))
	if i < 0 {
		fail(w, http.StatusNotFound, "question not found")
		return
	}
	q := s.questions[quizID][i]
	if p.Text != nil {
		q.Text = *p.Text
	}
	if p.Explanation != nil {
		q.Explanation = *p.Explanation
	}
	if p.OrderIndex != nil {
		q.OrderIndex = *p.OrderIndex
	}
	if p.Options != nil {
		q.Options = fromInput(quizID, q.OrderIndex, q.Type, q.Text, q.Explanation, p.Options).Options
		for j := range q.Options {
			q.Options[j].QuestionID = q.ID
		}
	}
	s.questions[quizID][i] = q
	ok(w, http.StatusOK, map[string]any{"question": toWire([]quiz.Question{q}, true)[0]})
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID := chi.URLParam(r, "id")
	i := s.findQuestion(quizID, chi.URLParam(r, "qid"))
	if i < 0 {
		fail(w, http.StatusNotFound, "question not found")
		return
	}
	qs := s.questions[quizID]
	s.questions[quizID] = append(qs[:i], qs[i+1:]...)
	ok(w, http.StatusOK, nil)
}

func (s *Server) quizSessions(quizID string) []*Session {
	var out []*Session
	for _, se := range s.sessions {
		if se.QuizID == quizID {
			out = append(out, se)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st quiz.Stats
	var sum float64
	completed, passed := 0, 0
	for _, se := range s.quizSessions(chi.URLParam(r, "id")) {
		st.TotalAttempts++
		if se.Result == nil {
			continue
		}
		completed++
		if se.Result.Passed {
			passed++
		}
		if se.Result.TotalQuestions > 0 {
			sum += float64(se.Result.Score) / float64(se.Result.TotalQuestions) * 100
		}
	}
	if completed > 0 {
		st.AverageScore = sum / float64(completed)
		st.PassRate = float64(passed) / float64(completed) * 100
	}
	if st.TotalAttempts > 0 {
		st.CompletionRate = float64(completed) / float64(st.TotalAttempts) * 100
	}
	ok(w, http.StatusOK, st)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.quizSessions(chi.URLParam(r, "id"))
	page := quizapi.SessionPage{Total: len(all), Sessions: []quiz.SessionSummary{}}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		se := all[i]
		sum := quiz.SessionSummary{
			ID: se.ID, QuizID: se.QuizID, UserID: fmt.Sprintf("user-%d", i+1),
			Status: quiz.SessionOngoing, StartTime: se.Started.Format(time.RFC3339),
		}
		if se.Result != nil {
			sum.Status = quiz.SessionCompleted
			score := float64(se.Result.Score)
			end := se.Ended.Format(time.RFC3339)
			sum.Score, sum.EndTime = &score, &end
		}
		page.Sessions = append(page.Sessions, sum)
	}
	ok(w, http.StatusOK, page)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := chi.URLParam(r, "sid")
	if _, found := s.sessions[sid]; !found {
		fail(w, http.StatusNotFound, "session not found")
		return
	}
	delete(s.sessions, sid)
	ok(w, http.StatusOK, nil)
}
