package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/ekosmy/portfolio/internal/api/http"
	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/cache"
	"github.com/ekosmy/portfolio/internal/config"
	"github.com/ekosmy/portfolio/internal/db"
	"github.com/ekosmy/portfolio/internal/logger"
	"github.com/ekosmy/portfolio/internal/progress"
	"github.com/ekosmy/portfolio/internal/quizapi"
	"github.com/ekosmy/portfolio/internal/restclient"
	"github.com/ekosmy/portfolio/internal/session"
	syncx "github.com/ekosmy/portfolio/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (default $QUIZ_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output, File: cfg.Log.File}); err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Local state ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	c, err := cache.New(openCtx, cache.Options{
		Driver:        cfg.CacheDriver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	// --- Remote APIs (the browser's bearer token is forwarded per request) ---
	authRest, err := restclient.New(cfg.AuthAPIURL, restclient.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		log.Fatalf("auth api: %v", err)
	}
	quizRest, err := restclient.New(cfg.QuizAPIURL, restclient.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		log.Fatalf("quiz api: %v", err)
	}
	quizAPI := quizapi.NewCached(quizapi.NewClient(quizRest), c, cfg.CacheTTL)

	registry := session.NewRegistry()
	defer registry.CloseAll()
	go sweep(ctx, registry, cfg.SessionSweep)

	sessions := &api.Sessions{
		API:      quizAPI,
		Registry: registry,
		Progress: progress.NewSQLStore(dbh),
		Events:   syncx.NewEventRepo(dbh, cfg.Profile),
		Origins:  cfg.CORSOrigins(),
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(ar chi.Router) {
		api.MountAPI(ar, api.Deps{
			Auth:        auth.NewClient(authRest),
			Quiz:        quizAPI,
			Sessions:    sessions,
			EnableAdmin: cfg.EnableAdmin,
			Timeout:     30 * time.Second,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", readyz(dbh))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Infof("listening on %s (mode=%s, db=%s, cache=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.CacheDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	logger.Infof("shutting down; saving %d open sessions", registry.Len())
}

// sweep drops finished controllers every so often.
func sweep(ctx context.Context, reg *session.Registry, after time.Duration) {
	if after <= 0 {
		return
	}
	t := time.NewTicker(sweepPeriod(after))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := reg.Sweep(after); n > 0 {
				logger.Debugf("swept %d finished sessions", n)
			}
		}
	}
}

// sweepPeriod checks twice per sweep window, but never more than once a second.
func sweepPeriod(after time.Duration) time.Duration {
	return max(after/2, time.Second)
}

func readyz(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			logger.Warnf("readyz: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	}
}
