package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
)

// taker drives one controller from line input: a number selects an
// option, n or an empty line moves on, p goes back, f finishes and q
// leaves with the progress saved.
type taker struct {
	c     *session.Controller
	out   io.Writer
	snaps chan session.Snapshot
	last  session.Snapshot
}

func runTaker(ctx context.Context, c *session.Controller, in io.Reader, out io.Writer) error {
	t := &taker{c: c, out: out, snaps: make(chan session.Snapshot, 1)}
	cancel := c.OnChange(t.push)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	t.last = c.Snapshot()
	if t.last.State == session.Finished {
		t.finished(t.last)
		return nil
	}
	renderQuestion(out, t.last)

	for {
		// state changes caused by the last command come first
		select {
		case s := <-t.snaps:
			if t.react(s) {
				return nil
			}
			continue
		default:
		}
		select {
		case <-ctx.Done():
			t.quit()
			return ctx.Err()
		case s := <-t.snaps:
			if t.react(s) {
				return nil
			}
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "q" {
				t.quit()
				return nil
			}
			if err := t.handle(ctx, line); err != nil {
				t.quit()
				return err
			}
		}
	}
}

// push keeps only the newest snapshot; the timer never waits on the UI.
func (t *taker) push(s session.Snapshot) {
	for {
		select {
		case t.snaps <- s:
			return
		default:
		}
		select {
		case <-t.snaps:
		default:
		}
	}
}

// react renders what changed since the last snapshot and reports whether
// the session is over.
func (t *taker) react(s session.Snapshot) bool {
	prev := t.last
	t.last = s
	switch {
	case s.State == session.Finished:
		t.finished(s)
		return true
	case s.State == session.Expired:
		if prev.State != session.Expired {
			fmt.Fprintln(t.out, "\ntime is up, finishing...")
		}
		// the finish started by the timer is not retried
		if s.Error != "" && (prev.State != session.Expired || s.Error != prev.Error) {
			fmt.Fprintf(t.out, "%s; press f to try finishing again\n", s.Error)
		}
	case s.Index != prev.Index:
		renderQuestion(t.out, s)
	case s.Timed && s.TimeLeft != prev.TimeLeft && tickWorthShowing(s):
		fmt.Fprintf(t.out, "  %s\n", clock(s))
	}
	return false
}

func tickWorthShowing(s session.Snapshot) bool {
	switch {
	case s.TimeLeft <= 10:
		return true
	case s.LowTime:
		return s.TimeLeft%30 == 0
	default:
		return s.TimeLeft%60 == 0
	}
}

func (t *taker) finished(s session.Snapshot) {
	if s.Result == nil {
		fmt.Fprintln(t.out, "\nsession finished")
		return
	}
	renderResult(t.out, "Quiz completed", *s.Result)
	fmt.Fprintf(t.out, "details: quizctl result %s\n", s.SessionID)
}

func (t *taker) quit() {
	st := t.c.State()
	t.c.Close()
	if st != session.Finished {
		fmt.Fprintf(t.out, "\nprogress saved; continue with: quizctl resume %s\n", t.c.SessionID())
	}
}

// handle runs one command. Only errors that end the session are returned;
// everything else is reported inline.
func (t *taker) handle(ctx context.Context, line string) error {
	cmd := strings.TrimSpace(line)
	s := t.c.Snapshot()
	var err error
	switch {
	case cmd == "" || cmd == "n":
		err = t.c.Next(ctx)
	case cmd == "p":
		err = t.c.Previous()
	case cmd == "f":
		err = t.c.Finish(ctx)
	case s.Question != nil && s.Question.Cardinality() == quiz.Free:
		if err = t.c.SetText(line); err == nil {
			renderQuestion(t.out, t.c.Snapshot())
		}
	default:
		if err = t.selectOptions(s, cmd); err == nil {
			renderQuestion(t.out, t.c.Snapshot())
		}
	}
	return t.report(err)
}

// selectOptions accepts one or more 1-based option numbers.
func (t *taker) selectOptions(s session.Snapshot, cmd string) error {
	if s.Question == nil {
		return session.ErrNotLoaded
	}
	for _, f := range strings.Fields(cmd) {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(s.Question.Options) {
			fmt.Fprintf(t.out, "unknown command %q; %s\n", cmd, help(s))
			return nil
		}
		if err := t.c.Select(s.Question.Options[n-1].ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *taker) report(err error) error {
	var submitErr *session.SubmitError
	switch {
	case err == nil:
		return nil
	case restclient.IsUnauthorized(err):
		return friendly(err)
	case errors.Is(err, session.ErrAnswerRequired):
		fmt.Fprintln(t.out, "answer the question first")
	case errors.As(err, &submitErr):
		fmt.Fprintf(t.out, "could not submit answer: %s; press n to retry\n", restclient.MessageOf(submitErr.Err))
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(t.out, "still sending, please wait")
	case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrFinished):
		fmt.Fprintf(t.out, "%v\n", err)
	case errors.Is(err, quiz.ErrUnknownOption), errors.Is(err, quiz.ErrWrongAnswerKind):
		fmt.Fprintf(t.out, "%v\n", err)
	default:
		fmt.Fprintf(t.out, "%v; press f to try finishing again\n", err)
		// react must not print the same failure again
		t.last = t.c.Snapshot()
	}
	return nil
}
