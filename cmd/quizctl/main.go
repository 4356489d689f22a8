// Command quizctl takes quizzes and manages them from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/ekosmy/portfolio/internal/config"
	"github.com/ekosmy/portfolio/internal/logger"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	cmd := rootCommand(a)
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "quizctl: %v\n", friendly(err))
		os.Exit(1)
	}
}

// rootCommand builds the command tree. Before fills a from the config; a
// test may fill it itself and skip the hook with a prepared app.
func rootCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:    "quizctl",
		Usage:   "take quizzes and manage them from the terminal",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file (default $QUIZ_CONFIG)"},
			&cli.StringFlag{Name: "profile", Usage: "login profile", Sources: cli.EnvVars("PROFILE")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if a.quiz != nil {
				return ctx, nil
			}
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			if p := cmd.String("profile"); p != "" {
				cfg.Profile = p
			}
			if err := logger.Setup(logger.Options{
				Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output, File: cfg.Log.File,
				Console: os.Stderr, // stdout belongs to the quiz
			}); err != nil {
				return ctx, err
			}
			built, err := newApp(ctx, cfg)
			if err != nil {
				return ctx, err
			}
			*a = *built
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			return a.Close()
		},
		Commands: []*cli.Command{
			loginCommand(a),
			registerCommand(a),
			logoutCommand(a),
			whoamiCommand(a),
			quizzesCommand(a),
			quizCommand(a),
			takeCommand(a),
			resumeCommand(a),
			sessionsCommand(a),
			resultCommand(a),
			historyCommand(a),
			adminCommand(a),
		},
	}
}
