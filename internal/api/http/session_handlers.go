package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/ekosmy/portfolio/internal/auth/middleware"
	"github.com/ekosmy/portfolio/internal/logger"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
)

// Sessions serves the quiz taking routes. Controllers live in the registry
// and belong to the user that started or resumed them.
type Sessions struct {
	API      quizapi.API
	Registry *session.Registry
	Progress session.ProgressStore
	Events   session.EventSink
	Clock    session.Clock
	// Origins may open the websocket stream besides the gateway's own host.
	Origins []string
}

func (s *Sessions) options(r *http.Request) []session.Option {
	// the countdown finishes on its own, with the token of whoever opened it
	timerCtx := restclient.WithToken(context.Background(), restclient.TokenFromContext(r.Context()))
	opts := []session.Option{session.WithTimerContext(timerCtx)}
	if s.Clock != nil {
		opts = append(opts, session.WithClock(s.Clock))
	}
	if s.Progress != nil {
		opts = append(opts, session.WithProgressStore(s.Progress))
	}
	if s.Events != nil {
		opts = append(opts, session.WithEventSink(s.Events))
	}
	return opts
}

func owner(r *http.Request) string {
	u, _ := authmw.UserFromContext(r.Context())
	return u.ID
}

// controller finds the caller's controller for the {sessionID} route. A
// session unknown to this process is resumed from saved progress; one
// still loading is retried.
func (s *Sessions) controller(r *http.Request) (*session.Controller, error) {
	sid := chi.URLParam(r, "sessionID")
	c, err := s.Registry.Open(owner(r), sid, func() (*session.Controller, error) {
		c := session.New(s.API, sid, "", s.options(r)...)
		if err := c.Load(r.Context()); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if c.State() == session.Loading {
		if err := c.Load(r.Context()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Start opens a remote session for {quizID} and registers its controller.
// A session whose questions failed to load stays registered so a later GET
// can retry the load.
func (s *Sessions) Start(w http.ResponseWriter, r *http.Request) {
	c, err := session.Start(r.Context(), s.API, chi.URLParam(r, "quizID"), s.options(r)...)
	if c != nil {
		if _, aerr := s.Registry.Add(owner(r), c); aerr != nil {
			writeError(w, r, aerr)
			return
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *Sessions) Get(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Sessions) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OptionID string `json:"option_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.act(w, r, func(c *session.Controller) error { return c.Select(req.OptionID) })
}

func (s *Sessions) Text(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.act(w, r, func(c *session.Controller) error { return c.SetText(req.Text) })
}

func (s *Sessions) Next(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(c *session.Controller) error { return c.Next(r.Context()) })
}

func (s *Sessions) Previous(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(c *session.Controller) error { return c.Previous() })
}

func (s *Sessions) Finish(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(c *session.Controller) error { return c.Finish(r.Context()) })
}

// act runs one controller operation and answers with the resulting
// snapshot, or with the mapped error and the snapshot alongside it.
func (s *Sessions) act(w http.ResponseWriter, r *http.Request, op func(*session.Controller) error) {
	c, err := s.controller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := op(c); err != nil {
		status, body := errorBody(err)
		if status >= 500 {
			logger.Warnf("session %s: %v", c.SessionID(), err)
		}
		body["snapshot"] = c.Snapshot()
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// Result returns the remote per-question breakdown of a finished session.
func (s *Sessions) Result(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sessionID")
	if _, err := s.Registry.Get(owner(r), sid); err != nil && !session.IsNotRegistered(err) {
		writeError(w, r, err)
		return
	}
	res, err := s.API.SessionResult(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "percentage": session.Percentage(res.Result)})
}

// Close stops the local controller. Unfinished progress is kept so the
// session can be resumed later.
func (s *Sessions) Close(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sessionID")
	if _, err := s.Registry.Get(owner(r), sid); err != nil {
		writeError(w, r, err)
		return
	}
	s.Registry.Drop(sid)
	w.WriteHeader(http.StatusNoContent)
}
