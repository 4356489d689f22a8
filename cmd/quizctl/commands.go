package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
	syncx "github.com/ekosmy/portfolio/internal/sync"
)

func (a *app) now() time.Time {
	if a.clock != nil {
		return a.clock.Now()
	}
	return time.Now()
}

// arg returns the i-th positional argument or a usage error naming it.
func arg(cmd *cli.Command, i int, name string) (string, error) {
	v := strings.TrimSpace(cmd.Args().Get(i))
	if v == "" {
		return "", fmt.Errorf("%s: missing <%s>", cmd.Name, name)
	}
	return v, nil
}

// readLine asks for a value on a.in when no flag carried it.
func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) credentials(cmd *cli.Command) (auth.Credentials, error) {
	cr := auth.Credentials{Email: cmd.String("email")}
	var err error
	if cr.Email == "" {
		if cr.Email, err = a.readLine("email: "); err != nil {
			return cr, err
		}
	}
	cr.Password, err = a.password("password: ")
	return cr, err
}

var emailFlag = &cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email"}

func loginCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and keep the token for this profile",
		Flags: []cli.Flag{emailFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cr, err := a.credentials(cmd)
			if err != nil {
				return err
			}
			u, err := a.auth.Login(ctx, cr)
			if err != nil {
				return err
			}
			a.printf("logged in as %s\n", u.Email)
			return nil
		},
	}
}

func registerCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "create an account",
		Flags: []cli.Flag{emailFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cr, err := a.credentials(cmd)
			if err != nil {
				return err
			}
			if err := a.auth.Register(ctx, cr); err != nil {
				return err
			}
			a.printf("registered %s; log in with: quizctl login -e %s\n", strings.TrimSpace(cr.Email), strings.TrimSpace(cr.Email))
			return nil
		},
	}
}

func logoutCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the token of this profile",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			err := a.auth.Logout(ctx)
			a.printf("logged out\n")
			if err != nil {
				// the local token is gone either way
				a.printf("warning: %v\n", err)
			}
			return nil
		},
	}
}

func whoamiCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the logged in user",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			u, err := a.auth.Current(ctx)
			if err != nil {
				return err
			}
			roles := "user"
			if len(u.Roles) > 0 {
				roles = strings.Join(u.Roles, ", ")
			}
			a.printf("%s (%s)\nroles: %s\n", u.Email, u.ID, roles)
			return nil
		},
	}
}

func quizzesCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "quizzes",
		Usage: "list available quizzes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Usage: "zero based page"},
			&cli.StringFlag{Name: "category"},
			&cli.StringFlag{Name: "difficulty"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			qs, err := a.quiz.ListQuizzes(ctx, quizapi.ListOpts{
				Page:       int(cmd.Int("page")),
				Category:   cmd.String("category"),
				Difficulty: cmd.String("difficulty"),
			})
			if err != nil {
				return err
			}
			renderQuizzes(a.out, qs)
			return nil
		},
	}
}

func quizCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "quiz",
		Usage:     "show one quiz",
		ArgsUsage: "<quiz-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := arg(cmd, 0, "quiz-id")
			if err != nil {
				return err
			}
			q, err := a.quiz.GetQuiz(ctx, id)
			if err != nil {
				return err
			}
			renderQuiz(a.out, q)
			return nil
		},
	}
}

func takeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "take",
		Usage:     "start a quiz and answer it here",
		ArgsUsage: "<quiz-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := arg(cmd, 0, "quiz-id")
			if err != nil {
				return err
			}
			c, err := session.Start(ctx, a.quiz, id, a.sessionOptions()...)
			if err != nil {
				if c != nil {
					c.Close()
				}
				return a.loadFailed(ctx, err)
			}
			s := c.Snapshot()
			renderQuiz(a.out, s.Quiz)
			return runTaker(ctx, c, a.in, a.out)
		},
	}
}

func resumeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "continue a session from where it was left",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "quiz", Usage: "quiz id, when no progress was saved here"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sid, err := arg(cmd, 0, "session-id")
			if err != nil {
				return err
			}
			c := session.New(a.quiz, sid, cmd.String("quiz"), a.sessionOptions()...)
			if err := c.Load(ctx); err != nil {
				c.Close()
				return a.loadFailed(ctx, err)
			}
			return runTaker(ctx, c, a.in, a.out)
		},
	}
}

// loadFailed shows the list to pick from again, like the quiz page does
// when a session cannot be opened.
func (a *app) loadFailed(ctx context.Context, err error) error {
	var le *session.LoadError
	if !errors.As(err, &le) || errors.Is(err, session.ErrUnknownQuiz) || restclient.IsUnauthorized(err) {
		return err
	}
	a.printf("could not open the quiz: %v\n", friendly(err))
	if qs, lerr := a.quiz.ListQuizzes(ctx, quizapi.ListOpts{}); lerr == nil {
		renderQuizzes(a.out, qs)
	}
	return err
}

func sessionsCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "list unfinished sessions saved on this machine",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ps, err := a.progress.List(ctx)
			if err != nil {
				return err
			}
			renderProgress(a.out, ps, a.now())
			return nil
		},
	}
}

func resultCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "result",
		Usage:     "show the result of a finished session",
		ArgsUsage: "<session-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sid, err := arg(cmd, 0, "session-id")
			if err != nil {
				return err
			}
			r, err := a.quiz.SessionResult(ctx, sid)
			if err != nil {
				return err
			}
			renderDetailed(a.out, r)
			return nil
		},
	}
}

func historyCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "show recent session events, or all events of one session",
		ArgsUsage: "[session-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "n", Value: 20, Usage: "how many events"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var (
				es  []syncx.Event
				err error
			)
			if sid := cmd.Args().First(); sid != "" {
				es, err = a.events.ForSession(ctx, sid)
			} else {
				es, err = a.events.Recent(ctx, int(cmd.Int("n")))
			}
			if err != nil {
				return err
			}
			renderEvents(a.out, es, a.now())
			return nil
		},
	}
}
