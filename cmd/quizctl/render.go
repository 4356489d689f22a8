package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/session"
	syncx "github.com/ekosmy/portfolio/internal/sync"
)

func table(w io.Writer) *tabwriter.Writer { return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0) }

func timeLimit(q quiz.Quiz) string {
	if q.TimeLimit == nil || *q.TimeLimit <= 0 {
		return "none"
	}
	return fmt.Sprintf("%d min", *q.TimeLimit)
}

func renderQuizzes(w io.Writer, qs []quiz.Quiz) {
	if len(qs) == 0 {
		fmt.Fprintln(w, "no quizzes")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tDIFFICULTY\tTIME\tPASS")
	for _, q := range qs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d%%\n", q.ID, q.Title, q.Category, q.Difficulty, timeLimit(q), q.PassingScore)
	}
	_ = tw.Flush()
}

func renderQuiz(w io.Writer, q quiz.Quiz) {
	fmt.Fprintf(w, "%s\n", q.Title)
	if q.Description != "" {
		fmt.Fprintf(w, "%s\n", q.Description)
	}
	fmt.Fprintf(w, "category: %s  difficulty: %s  time limit: %s  passing score: %d%%\n",
		orDash(q.Category), orDash(q.Difficulty), timeLimit(q), q.PassingScore)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// renderQuestion prints the current position the way the quiz page does:
// header, progress, timer and the options with their selection marks.
func renderQuestion(w io.Writer, s session.Snapshot) {
	if s.Question == nil {
		return
	}
	fmt.Fprintf(w, "\nQuestion %d of %d  [%s] %.0f%%", s.Index+1, s.Total, progressBar(s.Progress, 20), s.Progress)
	if s.Timed {
		fmt.Fprintf(w, "  %s", clock(s))
	}
	fmt.Fprintln(w)
	q := s.Question
	fmt.Fprintf(w, "%s (%s)\n", q.Text, q.Type.Label())
	if q.Cardinality() == quiz.Free {
		text := ""
		if s.Answer != nil {
			text = s.Answer.Text
		}
		fmt.Fprintf(w, "  answer: %s\n", orDash(text))
	} else {
		for i, o := range q.Options {
			mark := " "
			if s.Answer != nil && s.Answer.Selected(o.ID) {
				mark = "x"
			}
			if q.Cardinality() == quiz.Many {
				fmt.Fprintf(w, "  [%s] %d. %s\n", mark, i+1, o.Text)
			} else {
				fmt.Fprintf(w, "  (%s) %d. %s\n", mark, i+1, o.Text)
			}
		}
	}
	fmt.Fprintln(w, help(s))
}

func help(s session.Snapshot) string {
	var parts []string
	if s.Question != nil && s.Question.Cardinality() == quiz.Free {
		parts = append(parts, "type your answer")
	} else {
		parts = append(parts, "1-9 select")
	}
	if s.IsLast {
		parts = append(parts, "n/enter finish")
	} else {
		parts = append(parts, "n/enter next")
	}
	if !s.IsFirst {
		parts = append(parts, "p previous")
	}
	parts = append(parts, "f finish now", "q quit")
	return strings.Join(parts, " · ")
}

// clock renders the countdown; it turns into a warning under five minutes.
func clock(s session.Snapshot) string {
	if s.LowTime {
		return "!! " + s.Clock + " left"
	}
	return s.Clock + " left"
}

func progressBar(pct float64, width int) string {
	n := int(pct / 100 * float64(width))
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}

func renderResult(w io.Writer, title string, r quiz.Result) {
	verdict := "not passed"
	if r.Passed {
		verdict = "passed"
	}
	fmt.Fprintf(w, "\n%s: %d/%d correct (%s%%), %s\n", title, r.Score, r.TotalQuestions, r.Percentage(), verdict)
}

func renderDetailed(w io.Writer, r quiz.DetailedResult) {
	renderResult(w, "Result", r.Result)
	for i, b := range r.Breakdown {
		mark := "wrong"
		if b.IsCorrect {
			mark = "correct"
		}
		fmt.Fprintf(w, "  %2d. %-7s %s\n", i+1, mark, b.QuestionID)
	}
}

func renderProgress(w io.Writer, ps []session.Progress, now time.Time) {
	if len(ps) == 0 {
		fmt.Fprintln(w, "no unfinished sessions")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "SESSION\tQUIZ\tQUESTION\tANSWERED\tTIME LEFT\tSAVED")
	for _, p := range ps {
		left := "-"
		if p.TimeLeft != nil {
			left = session.FormatClock(*p.TimeLeft)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", p.SessionID, p.QuizID, p.Index+1, len(p.Answers), left,
			humanize.RelTime(p.UpdatedAt, now, "ago", "from now"))
	}
	_ = tw.Flush()
}

func renderEvents(w io.Writer, es []syncx.Event, now time.Time) {
	if len(es) == 0 {
		fmt.Fprintln(w, "no history yet")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "WHEN\tEVENT\tSESSION\tDATA")
	for _, e := range es {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", humanize.RelTime(e.Time(), now, "ago", "from now"), e.Type, e.Ref, e.DataJSON)
	}
	_ = tw.Flush()
}

func renderSessions(w io.Writer, total int, ss []quiz.SessionSummary) {
	fmt.Fprintf(w, "%d sessions\n", total)
	tw := table(w)
	fmt.Fprintln(tw, "SESSION\tUSER\tSTATUS\tSCORE\tSTARTED\tDURATION")
	for _, s := range ss {
		score := "-"
		if s.Score != nil {
			score = fmt.Sprintf("%.0f", *s.Score)
		}
		dur := "-"
		if d, ok := s.Duration(); ok {
			dur = d.Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.UserID, s.Status, score, s.StartTime, dur)
	}
	_ = tw.Flush()
}

func renderStats(w io.Writer, st quiz.Stats) {
	fmt.Fprintf(w, "attempts: %d\naverage score: %.1f\npass rate: %.1f%%\ncompletion rate: %.1f%%\n",
		st.TotalAttempts, st.AverageScore, st.PassRate, st.CompletionRate)
}

func renderQuestions(w io.Writer, qs []quiz.Question) {
	for i, q := range qs {
		fmt.Fprintf(w, "%d. [%s] %s  (id %s)\n", i+1, q.Type, q.Text, q.ID)
		for _, o := range q.Options {
			mark := " "
			if o.IsCorrect {
				mark = "*"
			}
			fmt.Fprintf(w, "     %s %s  (id %s)\n", mark, o.Text, o.ID)
		}
	}
}
