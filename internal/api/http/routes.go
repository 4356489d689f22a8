package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ekosmy/portfolio/internal/auth"
	authmw "github.com/ekosmy/portfolio/internal/auth/middleware"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/rbac"
)

type Deps struct {
	Auth     *auth.Client
	Quiz     quizapi.API
	Sessions *Sessions

	EnableAdmin bool
	// Timeout bounds every route except the websocket stream.
	Timeout time.Duration
}

// MountAPI wires the browser facing API onto r, normally under /api.
// Bearer tokens are forwarded to the remote services as they are.
func MountAPI(r chi.Router, d Deps) {
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	r.Use(authmw.Bearer)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(d.Timeout))
		pr.Post("/auth/login", LoginHandler(d.Auth))
		pr.Post("/auth/register", RegisterHandler(d.Auth))
		pr.Post("/auth/logout", LogoutHandler(d.Auth))
	})

	// websocket upgrades are long lived; keep them outside the timeout
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.RequireUser(d.Auth))
		pr.With(rbac.Require("session:view-own")).
			Get("/sessions/{sessionID}/ws", d.Sessions.Stream)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(d.Timeout))
		pr.Use(authmw.RequireUser(d.Auth))

		pr.Get("/auth/me", MeHandler())

		pr.With(rbac.Require("quiz:list")).Get("/quizzes", ListQuizzesHandler(d.Quiz))
		pr.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}", GetQuizHandler(d.Quiz))
		pr.With(rbac.Require("quiz:take")).Post("/quizzes/{quizID}/sessions", d.Sessions.Start)

		own := pr.With(rbac.Require("session:view-own"))
		own.Get("/sessions/{sessionID}", d.Sessions.Get)
		own.Delete("/sessions/{sessionID}", d.Sessions.Close)
		own.Get("/sessions/{sessionID}/result", d.Sessions.Result)

		take := own.With(rbac.Require("quiz:take"))
		take.Post("/sessions/{sessionID}/select", d.Sessions.Select)
		take.Post("/sessions/{sessionID}/text", d.Sessions.Text)
		take.Post("/sessions/{sessionID}/next", d.Sessions.Next)
		take.Post("/sessions/{sessionID}/previous", d.Sessions.Previous)
		take.Post("/sessions/{sessionID}/finish", d.Sessions.Finish)

		if d.EnableAdmin {
			pr.Route("/admin", func(ar chi.Router) {
				MountAdmin(ar, d.Quiz)
			})
		}
	})
}
