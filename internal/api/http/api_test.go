package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/cache"
	"github.com/ekosmy/portfolio/internal/progress"
	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/quizapi/quizapitest"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
)

// fakeAuth knows three tokens: a plain user, a second plain user and a
// quiz admin. Logout always fails.
func fakeAuth(t *testing.T) *httptest.Server {
	users := map[string]auth.User{
		"user-tok":  {ID: "u1", Email: "ana@example.com"},
		"other-tok": {ID: "u2", Email: "bo@example.com"},
		"admin-tok": {ID: "a1", Email: "root@example.com", Roles: []string{"admin_quiz"}},
	}
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var cr auth.Credentials
		_ = json.NewDecoder(r.Body).Decode(&cr)
		if cr.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"session_token": "user-tok"})
	})
	r.Post("/register", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		u, ok := users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid session"})
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	})
	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

type gateway struct {
	quiz     *quizapitest.Server
	clock    *session.ManualClock
	progress *progress.MemoryStore
	events   *session.MemoryEvents
	sessions *Sessions
	ts       *httptest.Server
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	qs := quizapitest.New()
	t.Cleanup(qs.Close)
	qs.UserToken, qs.AdminToken = "user-tok", "admin-tok"
	g := &gateway{
		quiz:     qs,
		clock:    session.NewManualClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		progress: progress.NewMemoryStore(),
		events:   &session.MemoryEvents{},
	}
	g.ts = g.serve(t, session.NewRegistry())
	return g
}

// serve starts a gateway process over the shared fakes and stores.
func (g *gateway) serve(t *testing.T, reg *session.Registry) *httptest.Server {
	t.Helper()
	authRest, err := restclient.New(fakeAuth(t).URL)
	require.NoError(t, err)
	quizRest, err := restclient.New(g.quiz.URL())
	require.NoError(t, err)
	api := quizapi.NewCached(quizapi.NewClient(quizRest), cache.NewMemory(), time.Minute)

	g.sessions = &Sessions{API: api, Registry: reg, Progress: g.progress, Events: g.events, Clock: g.clock}
	r := chi.NewRouter()
	r.Route("/api", func(ar chi.Router) {
		MountAPI(ar, Deps{Auth: auth.NewClient(authRest), Quiz: api, Sessions: g.sessions, EnableAdmin: true})
	})
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		reg.CloseAll()
		ts.Close()
	})
	return ts
}

func (g *gateway) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, g.ts.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func intp(v int) *int { return &v }

func (g *gateway) addQuiz(timeLimit *int) quiz.Quiz {
	return g.quiz.AddQuiz(quiz.Quiz{Title: "Go basics", TimeLimit: timeLimit, PassingScore: 50},
		quiz.Question{ID: "q1", Type: quiz.TypeSingle, Text: "Zero value of int?", Options: []quiz.Option{
			{ID: "a", Text: "0", IsCorrect: true}, {ID: "b", Text: "nil"},
		}},
		quiz.Question{ID: "q2", Type: quiz.TypeMulti, Text: "Reference types?", Options: []quiz.Option{
			{ID: "c", Text: "map", IsCorrect: true}, {ID: "d", Text: "int"},
		}},
	)
}

func TestLogin(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, http.MethodPost, "/api/auth/login", "", auth.Credentials{Email: "ana@example.com", Password: "secret"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-tok", body["token"])
	assert.Equal(t, "u1", body["user"].(map[string]any)["id"])

	status, body = g.do(t, http.MethodPost, "/api/auth/login", "", auth.Credentials{Email: "ana@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", body["error"])

	status, _ = g.do(t, http.MethodPost, "/api/auth/login", "", auth.Credentials{Email: " "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = g.do(t, http.MethodPost, "/api/auth/register", "", auth.Credentials{Email: "new@example.com", Password: "pw"})
	assert.Equal(t, http.StatusCreated, status)
}

func TestLogoutIgnoresRemoteFailure(t *testing.T) {
	g := newGateway(t)
	status, _ := g.do(t, http.MethodPost, "/api/auth/logout", "user-tok", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestMissingTokenRedirectsToLogin(t *testing.T) {
	g := newGateway(t)

	for _, tok := range []string{"", "stale-tok"} {
		status, body := g.do(t, http.MethodGet, "/api/quizzes", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "/login", body["redirect"])
	}

	status, body := g.do(t, http.MethodGet, "/api/auth/me", "admin-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["admin"])
}

func TestTakeQuiz(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(nil)

	status, body := g.do(t, http.MethodGet, "/api/quizzes", "user-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["quizzes"], 1)

	status, body = g.do(t, http.MethodPost, "/api/quizzes/"+qz.ID+"/sessions", "user-tok", nil)
	require.Equal(t, http.StatusCreated, status, body)
	sid := body["session_id"].(string)
	assert.Equal(t, "in_progress", body["state"])
	assert.EqualValues(t, 2, body["total"])
	assert.Equal(t, false, body["timed"])
	base := "/api/sessions/" + sid

	status, body = g.do(t, http.MethodPost, base+"/next", "user-tok", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.EqualValues(t, 0, body["snapshot"].(map[string]any)["index"])

	status, body = g.do(t, http.MethodPost, base+"/select", "user-tok", map[string]string{"option_id": "zzz"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = g.do(t, http.MethodPost, base+"/select", "user-tok", map[string]string{"option_id": "a"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["can_advance"])

	status, body = g.do(t, http.MethodPost, base+"/next", "user-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["index"])
	assert.Equal(t, true, body["is_last"])

	status, _ = g.do(t, http.MethodPost, base+"/text", "user-tok", map[string]string{"text": "map"})
	assert.Equal(t, http.StatusBadRequest, status, "text on a choice question")

	status, _ = g.do(t, http.MethodPost, base+"/select", "user-tok", map[string]string{"option_id": "c"})
	require.Equal(t, http.StatusOK, status)
	status, body = g.do(t, http.MethodPost, base+"/next", "user-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "finished", body["state"])
	assert.Equal(t, "100.0", body["percentage"])
	assert.Equal(t, 1, g.quiz.Finishes())

	status, body = g.do(t, http.MethodPost, base+"/finish", "user-tok", nil)
	assert.Equal(t, http.StatusConflict, status, "finish never succeeds twice")
	assert.Equal(t, 1, g.quiz.Finishes())

	status, body = g.do(t, http.MethodGet, base+"/result", "user-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100.0", body["percentage"])
	assert.Len(t, body["result"].(map[string]any)["detailed_breakdown"], 2)

	assert.Equal(t, []string{session.EventSessionStarted, session.EventAnswerSubmitted, session.EventAnswerSubmitted, session.EventSessionFinished}, g.events.Types())
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(nil)
	_, body := g.do(t, http.MethodPost, "/api/quizzes/"+qz.ID+"/sessions", "user-tok", nil)
	base := "/api/sessions/" + body["session_id"].(string)

	g.do(t, http.MethodPost, base+"/select", "user-tok", map[string]string{"option_id": "a"})
	g.quiz.FailSubmits(1)
	status, body := g.do(t, http.MethodPost, base+"/next", "user-tok", nil)
	require.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, true, body["retryable"])
	snap := body["snapshot"].(map[string]any)
	assert.EqualValues(t, 0, snap["index"])
	assert.Equal(t, true, snap["can_advance"], "the answer survives the failure")

	status, body = g.do(t, http.MethodPost, base+"/next", "user-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["index"])
}

func TestLoadFailureGoesBackToList(t *testing.T) {
	g := newGateway(t)
	status, body := g.do(t, http.MethodPost, "/api/quizzes/missing/sessions", "user-tok", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "/quizzes", body["back"])

	status, body = g.do(t, http.MethodGet, "/api/sessions/never-started", "user-tok", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "/quizzes", body["back"])
}

func TestSessionBelongsToStarter(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(nil)
	_, body := g.do(t, http.MethodPost, "/api/quizzes/"+qz.ID+"/sessions", "user-tok", nil)
	base := "/api/sessions/" + body["session_id"].(string)

	status, _ := g.do(t, http.MethodGet, base, "other-tok", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = g.do(t, http.MethodDelete, base, "other-tok", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = g.do(t, http.MethodDelete, base, "user-tok", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 0, g.sessions.Registry.Len())
}

func TestResumeAfterRestart(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(intp(5))
	_, body := g.do(t, http.MethodPost, "/api/quizzes/"+qz.ID+"/sessions", "user-tok", nil)
	sid := body["session_id"].(string)
	base := "/api/sessions/" + sid

	g.do(t, http.MethodPost, base+"/select", "user-tok", map[string]string{"option_id": "a"})
	g.do(t, http.MethodPost, base+"/next", "user-tok", nil)
	g.clock.Advance(30 * time.Second)

	// a fresh process shares only the progress store
	g.ts = g.serve(t, session.NewRegistry())

	status, body := g.do(t, http.MethodGet, base, "user-tok", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["index"])
	assert.EqualValues(t, 1, body["answered"])
	assert.LessOrEqual(t, body["time_left"].(float64), float64(5*60-25))
	assert.Len(t, g.quiz.Submits(), 1)
}

func TestTimerFinishesWithStarterToken(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(intp(1))
	status, body := g.do(t, http.MethodPost, "/api/quizzes/"+qz.ID+"/sessions", "user-tok", nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "1:00", body["clock"])
	base := "/api/sessions/" + body["session_id"].(string)

	g.clock.Advance(time.Minute)

	_, body = g.do(t, http.MethodGet, base, "user-tok", nil)
	assert.Equal(t, "finished", body["state"])
	assert.Equal(t, 1, g.quiz.Finishes())
	assert.Contains(t, g.events.Types(), session.EventSessionExpired)
}

func TestAdminRoutes(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(nil)

	status, _ := g.do(t, http.MethodGet, "/api/admin/quizzes", "user-tok", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := g.do(t, http.MethodPost, "/api/admin/quizzes", "admin-tok", map[string]any{"title": "", "passing_score": 50})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "title")

	status, body = g.do(t, http.MethodPost, "/api/admin/quizzes", "admin-tok", map[string]any{"title": "Channels", "passing_score": 70, "time_limit": 10})
	require.Equal(t, http.StatusCreated, status)
	newID := body["id"].(string)

	status, body = g.do(t, http.MethodGet, "/api/admin/quizzes", "admin-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["quizzes"], 2)

	status, body = g.do(t, http.MethodPost, "/api/admin/quizzes/"+newID+"/question", "admin-tok", map[string]any{
		"type": "bool", "question_text": "Unbuffered channels block", "options": []map[string]any{
			{"option_text": "True", "is_correct": true}, {"option_text": "False"},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	qid := body["id"].(string)

	status, _ = g.do(t, http.MethodPut, "/api/admin/quizzes/"+newID+"/questions/"+qid, "admin-tok", map[string]any{
		"type": "bool", "options": []map[string]any{{"option_text": "True"}, {"option_text": "False"}},
	})
	assert.Equal(t, http.StatusBadRequest, status, "a bool question needs one correct option")

	status, body = g.do(t, http.MethodGet, "/api/admin/quizzes/"+newID+"/questions", "admin-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["questions"], 1)

	status, body = g.do(t, http.MethodGet, "/api/admin/quizzes/"+qz.ID+"/sessions?limit=5", "admin-tok", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])

	status, _ = g.do(t, http.MethodDelete, "/api/admin/quizzes/"+newID, "admin-tok", nil)
	assert.Equal(t, http.StatusNoContent, status)
	_, body = g.do(t, http.MethodGet, "/api/admin/quizzes", "admin-tok", nil)
	assert.Len(t, body["quizzes"], 1)
}

func TestStream(t *testing.T) {
	g := newGateway(t)
	qz := g.addQuiz(intp(1))
	_, body := g.do(t, http.MethodPost, "/api/quizzes/"+qz.ID+"/sessions", "user-tok", nil)
	sid := body["session_id"].(string)

	url := "ws" + strings.TrimPrefix(g.ts.URL, "http") + "/api/sessions/" + sid + "/ws?token=user-tok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]any {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var m map[string]any
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}
	first := read()
	assert.Equal(t, "in_progress", first["state"])
	assert.Equal(t, false, first["can_advance"])

	g.do(t, http.MethodPost, "/api/sessions/"+sid+"/select", "user-tok", map[string]string{"option_id": "a"})
	var m map[string]any
	for i := 0; i < 5; i++ {
		if m = read(); m["can_advance"] == true {
			break
		}
	}
	assert.Equal(t, true, m["can_advance"])

	g.clock.Advance(time.Minute)
	for i := 0; i < 100 && m["state"] != "finished"; i++ {
		m = read()
	}
	assert.Equal(t, "finished", m["state"])
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	s := &Sessions{Origins: []string{"https://ekos.my.id"}}
	req := httptest.NewRequest(http.MethodGet, "http://gw.local/api/sessions/x/ws", nil)

	assert.True(t, s.checkOrigin(req), "no origin header")
	req.Header.Set("Origin", "http://gw.local")
	assert.True(t, s.checkOrigin(req))
	req.Header.Set("Origin", "https://ekos.my.id")
	assert.True(t, s.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, s.checkOrigin(req))
}

func TestErrorBody(t *testing.T) {
	cases := []struct {
		err    error
		status int
		key    string
	}{
		{&restclient.Error{Op: "me", Status: 401}, http.StatusUnauthorized, "redirect"},
		{&session.SubmitError{Index: 0, Err: &restclient.Error{Op: "answer", Status: 500}}, http.StatusBadGateway, "retryable"},
		{&session.LoadError{Op: "questions", Err: &restclient.Error{Op: "questions", Status: 404}}, http.StatusBadGateway, "back"},
		{session.ErrAnswerRequired, http.StatusBadRequest, ""},
		{session.ErrBusy, http.StatusConflict, ""},
		{session.ErrNotOwner, http.StatusForbidden, ""},
		{quizapi.ErrInvalid, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		status, body := errorBody(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		if tc.key != "" {
			assert.Contains(t, body, tc.key)
		}
	}
}
