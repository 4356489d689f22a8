package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type seen struct {
	method, path, query, auth, reqID, ctype string
	body                                    map[string]any
}

func recorder(t *testing.T, status int, reply string, got *seen) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.auth = r.Header.Get("Authorization")
		got.reqID = r.Header.Get("X-Request-ID")
		got.ctype = r.Header.Get("Content-Type")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDo_DecodesEnvelope(t *testing.T) {
	var got seen
	srv := recorder(t, 200, `{"success":true,"result":{"session_id":"s-1"}}`, &got)

	c, err := New(srv.URL + "/api/v1/")
	require.NoError(t, err)

	var out struct {
		SessionID string `json:"session_id"`
	}
	err = c.Do(context.Background(), "start", Request{Method: http.MethodPost, Path: "/quizzes/q1/start", Body: map[string]int{"x": 1}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "s-1", out.SessionID)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/v1/quizzes/q1/start", got.path)
	assert.Equal(t, "application/json", got.ctype)
	assert.NotEmpty(t, got.reqID)
	assert.Empty(t, got.auth)
	assert.EqualValues(t, 1, got.body["x"])
}

func TestDo_QueryAndTokenSource(t *testing.T) {
	var got seen
	srv := recorder(t, 200, `{"success":true,"result":{}}`, &got)

	ts := TokenSourceFunc(func(context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "stored"}, nil
	})
	c, err := New(srv.URL, WithTokenSource(ts), WithTimeout(time.Second))
	require.NoError(t, err)

	err = c.Do(context.Background(), "list", Request{Path: "quizzes", Query: url.Values{"page": {"2"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored", got.auth)
	assert.Equal(t, "page=2", got.query)

	// a token pinned to the context wins
	err = c.Do(WithToken(context.Background(), "pinned"), "list", Request{Path: "quizzes"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer pinned", got.auth)
}

func TestDo_ExpiredTokenNeverLeaves(t *testing.T) {
	var got seen
	srv := recorder(t, 200, `{"success":true}`, &got)

	ts := TokenSourceFunc(func(context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}, nil
	})
	c, err := New(srv.URL, WithTokenSource(ts))
	require.NoError(t, err)

	err = c.Do(context.Background(), "me", Request{Path: "/me"}, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, got.method, "request must not reach the server")
}

func TestDo_ErrorStatuses(t *testing.T) {
	var got seen
	srv := recorder(t, http.StatusForbidden, `{"success":false,"message":"admin only"}`, &got)
	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.Do(context.Background(), "delete quiz", Request{Method: http.MethodDelete, Path: "/admin/quizzes/1"}, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, http.StatusForbidden, StatusOf(err))
	assert.Equal(t, "admin only", MessageOf(err))
	assert.Contains(t, err.Error(), "delete quiz")
}

func TestDo_SuccessFalseOn200(t *testing.T) {
	var got seen
	srv := recorder(t, 200, `{"success":false,"message":"quiz closed"}`, &got)
	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.Do(context.Background(), "start", Request{Method: http.MethodPost, Path: "/x"}, nil)
	require.Error(t, err)
	assert.Equal(t, "quiz closed", MessageOf(err))
	assert.False(t, IsUnauthorized(err))
}

func TestDoRaw(t *testing.T) {
	var got seen
	srv := recorder(t, 200, `{"id":"u1","email":"a@b.c"}`, &got)
	c, err := New(srv.URL)
	require.NoError(t, err)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.DoRaw(context.Background(), "me", Request{Path: "/me"}, &out))
	assert.Equal(t, "u1", out.ID)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api/v1")
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	var got seen
	srv := recorder(t, http.StatusNotFound, `not here`, &got)
	c, err := New(srv.URL)
	require.NoError(t, err)
	err = c.Do(context.Background(), "get", Request{Path: "/quizzes/x"}, nil)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "not here", MessageOf(err))
}
