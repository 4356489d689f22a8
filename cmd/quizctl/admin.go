package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
)

func quizFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "category"},
		&cli.StringFlag{Name: "difficulty", Usage: "easy, medium or hard"},
		&cli.IntFlag{Name: "time-limit", Usage: "minutes, 0 for untimed"},
		&cli.IntFlag{Name: "passing-score", Usage: "percent needed to pass"},
	}
}

func questionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "mcq, multi, bool or short"},
		&cli.StringFlag{Name: "text", Usage: "question text"},
		&cli.StringFlag{Name: "explanation"},
		&cli.IntFlag{Name: "order", Usage: "order index"},
		&cli.StringSliceFlag{Name: "option", Usage: "option text, prefix with * to mark it correct; repeat per option"},
	}
}

// parseOptions reads --option values; a leading * marks a correct one.
func parseOptions(raw []string) []quizapi.OptionInput {
	if len(raw) == 0 {
		return nil
	}
	out := make([]quizapi.OptionInput, 0, len(raw))
	for _, r := range raw {
		text, correct := strings.CutPrefix(strings.TrimSpace(r), "*")
		out = append(out, quizapi.OptionInput{Text: strings.TrimSpace(text), IsCorrect: correct})
	}
	return out
}

func optString(cmd *cli.Command, name string) *string {
	if !cmd.IsSet(name) {
		return nil
	}
	v := cmd.String(name)
	return &v
}

func optInt(cmd *cli.Command, name string) *int {
	if !cmd.IsSet(name) {
		return nil
	}
	v := int(cmd.Int(name))
	return &v
}

func adminCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "manage quizzes (admin accounts only)",
		Commands: []*cli.Command{
			{
				Name:  "quizzes",
				Usage: "list every quiz",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					qs, err := a.quiz.AdminListQuizzes(ctx)
					if err != nil {
						return err
					}
					renderQuizzes(a.out, qs)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "create a quiz",
				Flags: quizFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					in := quizapi.QuizInput{
						Title:        cmd.String("title"),
						Description:  cmd.String("description"),
						Category:     cmd.String("category"),
						Difficulty:   cmd.String("difficulty"),
						PassingScore: int(cmd.Int("passing-score")),
					}
					if tl := int(cmd.Int("time-limit")); tl != 0 {
						in.TimeLimit = &tl
					}
					id, err := a.quiz.CreateQuiz(ctx, in)
					if err != nil {
						return err
					}
					a.printf("created quiz %s\n", id)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "change the given fields of a quiz",
				ArgsUsage: "<quiz-id>",
				Flags:     quizFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					q, err := a.quiz.UpdateQuiz(ctx, id, quizapi.QuizPatch{
						Title:        optString(cmd, "title"),
						Description:  optString(cmd, "description"),
						Category:     optString(cmd, "category"),
						Difficulty:   optString(cmd, "difficulty"),
						TimeLimit:    optInt(cmd, "time-limit"),
						PassingScore: optInt(cmd, "passing-score"),
					})
					if err != nil {
						return err
					}
					renderQuiz(a.out, q)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a quiz",
				ArgsUsage: "<quiz-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					if err := a.quiz.DeleteQuiz(ctx, id); err != nil {
						return err
					}
					a.printf("deleted quiz %s\n", id)
					return nil
				},
			},
			{
				Name:      "questions",
				Usage:     "list the questions of a quiz with their answers",
				ArgsUsage: "<quiz-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					qs, err := a.quiz.AdminQuestions(ctx, id)
					if err != nil {
						return err
					}
					renderQuestions(a.out, qs)
					return nil
				},
			},
			{
				Name:      "add-question",
				Usage:     "add a question to a quiz",
				ArgsUsage: "<quiz-id>",
				Flags:     questionFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					qid, err := a.quiz.AddQuestion(ctx, id, quizapi.QuestionInput{
						Type:        quiz.QuestionType(cmd.String("type")),
						Text:        cmd.String("text"),
						Explanation: cmd.String("explanation"),
						OrderIndex:  int(cmd.Int("order")),
						Options:     parseOptions(cmd.StringSlice("option")),
					})
					if err != nil {
						return err
					}
					a.printf("added question %s\n", qid)
					return nil
				},
			},
			{
				Name:      "update-question",
				Usage:     "change the given fields of a question; --type is needed with --option",
				ArgsUsage: "<quiz-id> <question-id>",
				Flags:     questionFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					qid, err := arg(cmd, 1, "question-id")
					if err != nil {
						return err
					}
					q, err := a.quiz.UpdateQuestion(ctx, id, qid, quizapi.QuestionPatch{
						Type:        quiz.QuestionType(cmd.String("type")),
						Text:        optString(cmd, "text"),
						Explanation: optString(cmd, "explanation"),
						OrderIndex:  optInt(cmd, "order"),
						Options:     parseOptions(cmd.StringSlice("option")),
					})
					if err != nil {
						return err
					}
					renderQuestions(a.out, []quiz.Question{q})
					return nil
				},
			},
			{
				Name:      "delete-question",
				Usage:     "delete a question",
				ArgsUsage: "<quiz-id> <question-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					qid, err := arg(cmd, 1, "question-id")
					if err != nil {
						return err
					}
					if err := a.quiz.DeleteQuestion(ctx, id, qid); err != nil {
						return err
					}
					a.printf("deleted question %s\n", qid)
					return nil
				},
			},
			{
				Name:      "stats",
				Usage:     "show attempt statistics of a quiz",
				ArgsUsage: "<quiz-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					st, err := a.quiz.QuizStats(ctx, id)
					if err != nil {
						return err
					}
					renderStats(a.out, st)
					return nil
				},
			},
			{
				Name:      "sessions",
				Usage:     "list the sessions of a quiz",
				ArgsUsage: "<quiz-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset"},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := arg(cmd, 0, "quiz-id")
					if err != nil {
						return err
					}
					page, err := a.quiz.QuizSessions(ctx, id, int(cmd.Int("offset")), int(cmd.Int("limit")))
					if err != nil {
						return err
					}
					renderSessions(a.out, page.Total, page.Sessions)
					return nil
				},
			},
			{
				Name:      "delete-session",
				Usage:     "delete a session",
				ArgsUsage: "<session-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					sid, err := arg(cmd, 0, "session-id")
					if err != nil {
						return err
					}
					if err := a.quiz.DeleteSession(ctx, sid); err != nil {
						return err
					}
					a.printf("deleted session %s\n", sid)
					return nil
				},
			},
		},
	}
}
