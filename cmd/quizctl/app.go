package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/cache"
	"github.com/ekosmy/portfolio/internal/config"
	"github.com/ekosmy/portfolio/internal/db"
	"github.com/ekosmy/portfolio/internal/progress"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
	syncx "github.com/ekosmy/portfolio/internal/sync"
)

// app is everything a command needs. Tests build one over fakes.
type app struct {
	cfg      config.Config
	db       *sql.DB
	auth     *auth.Service
	quiz     quizapi.API
	progress *progress.SQLStore
	events   *syncx.EventRepo
	clock    session.Clock

	in       io.Reader
	out      io.Writer
	password func(prompt string) (string, error)
}

// newApp opens the local store and builds both API clients. The stored
// token of cfg.Profile is attached to every call.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	dsn := cfg.DBDSN
	if dsn == "" && cfg.DBDriver == string(db.DriverSQLite) {
		var err error
		if dsn, err = defaultDSN(); err != nil {
			return nil, err
		}
	}
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), dsn)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}

	var sealer *auth.Sealer
	if cfg.TokenSecret != "" {
		if sealer, err = auth.NewSealer(cfg.TokenSecret); err != nil {
			_ = dbh.Close()
			return nil, err
		}
	}
	tokens := auth.NewSQLTokenStore(dbh, sealer)
	ts := auth.StoreTokenSource(tokens, cfg.Profile)

	authRest, err := restclient.New(cfg.AuthAPIURL, restclient.WithTimeout(cfg.HTTPTimeout), restclient.WithTokenSource(ts))
	if err != nil {
		_ = dbh.Close()
		return nil, err
	}
	quizRest, err := restclient.New(cfg.QuizAPIURL, restclient.WithTimeout(cfg.HTTPTimeout), restclient.WithTokenSource(ts))
	if err != nil {
		_ = dbh.Close()
		return nil, err
	}
	c, err := cache.New(ctx, cache.Options{
		Driver:        cfg.CacheDriver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		_ = dbh.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		db:       dbh,
		auth:     auth.NewService(auth.NewClient(authRest), tokens, cfg.Profile),
		quiz:     quizapi.NewCached(quizapi.NewClient(quizRest), c, cfg.CacheTTL),
		progress: progress.NewSQLStore(dbh),
		events:   syncx.NewEventRepo(dbh, cfg.Profile),
		in:       os.Stdin,
		out:      os.Stdout,
		password: promptPassword,
	}, nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) sessionOptions() []session.Option {
	opts := []session.Option{
		session.WithProgressStore(a.progress),
		session.WithEventSink(a.events),
	}
	if a.clock != nil {
		opts = append(opts, session.WithClock(a.clock))
	}
	return opts
}

func (a *app) printf(format string, args ...any) { fmt.Fprintf(a.out, format, args...) }

// friendly turns authentication failures into a hint to log in.
func friendly(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrNotLoggedIn) || restclient.IsUnauthorized(err) {
		return fmt.Errorf("please log in (quizctl login): %s", restclient.MessageOf(err))
	}
	if errors.Is(err, auth.ErrSealed) {
		return fmt.Errorf("%w; set TOKEN_SECRET or log in again", err)
	}
	return err
}

func defaultDSN() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	dir = filepath.Join(dir, "ekosmy")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	return "file:" + filepath.Join(dir, "quizctl.db") + "?_pragma=busy_timeout(5000)", nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var line string
		_, err := fmt.Fscanln(os.Stdin, &line)
		return strings.TrimSpace(line), err
	}
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return string(b), err
}
