// Package server assembles the HTTP routes and runs the server.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/handler"
	"github.com/matthewbaird/filterspec/internal/planner"
	"github.com/matthewbaird/filterspec/internal/repl"
	"github.com/matthewbaird/filterspec/internal/repl/session"
)

const shutdownTimeout = 10 * time.Second

// Config holds server configuration.
type Config struct {
	Port     int
	Executor *executor.Executor
	REPL     repl.Config
	Logger   zerolog.Logger
}

// NewRouter registers every route. The returned session manager belongs to
// the REPL; Serve runs its cleanup loop.
func NewRouter(cfg Config) (http.Handler, *session.Manager) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	registry := cfg.Executor.Registry()
	qh := handler.NewQueryHandler(planner.New(registry), cfg.Executor)
	sh := handler.NewSchemaHandler(registry)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schema", sh.List)
		r.Get("/schema/{entity}", sh.Get)
		r.Post("/query/{entity}", qh.Query)
		r.Post("/count/{entity}", qh.Count)
		r.Post("/fql", qh.FQL)
	})

	sessions := repl.RegisterRoutes(r, cfg.Executor, cfg.REPL, cfg.Logger.With().Str("component", "repl").Logger())
	return r, sessions
}

// Run listens on the configured port and serves until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return errors.Wrapf(err, "listen on port %d", cfg.Port)
	}
	return Serve(ctx, ln, cfg)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, cfg Config) error {
	h, sessions := NewRouter(cfg)
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go sessions.Run(ctx, time.Minute)

	errc := make(chan error, 1)
	go func() {
		cfg.Logger.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	cfg.Logger.Info().Msg("server stopped")
	return nil
}

// requestLogger puts a request-scoped logger into the context and logs each
// request once it completes.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
