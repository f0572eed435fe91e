// Package repl provides the WebSocket-based REPL for FQL queries.
package repl

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/planner"
	"github.com/matthewbaird/filterspec/internal/repl/autocomplete"
	"github.com/matthewbaird/filterspec/internal/repl/meta"
	"github.com/matthewbaird/filterspec/internal/repl/session"
	"github.com/matthewbaird/filterspec/internal/repl/wire"
)

// Config controls REPL session lifetimes.
type Config struct {
	MaxAge      time.Duration
	IdleTimeout time.Duration
}

// DefaultConfig keeps sessions for 24 hours, or 30 minutes without activity.
var DefaultConfig = Config{MaxAge: 24 * time.Hour, IdleTimeout: 30 * time.Minute}

// RegisterRoutes registers REPL HTTP and WebSocket routes on the given
// router. The returned manager owns the sessions; callers run its cleanup
// loop.
func RegisterRoutes(r chi.Router, x *executor.Executor, cfg Config, log zerolog.Logger) *session.Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig.MaxAge
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig.IdleTimeout
	}
	sessions := session.NewManager(cfg.MaxAge, cfg.IdleTimeout)

	registry := x.Registry()
	pl := planner.New(registry)
	ac := autocomplete.New(registry, executor.Functions()...)
	metaHandler := meta.New(registry, pl, x)

	wsHandler := wire.NewHandler(sessions, pl, x, ac, metaHandler, log)

	r.Route("/api/repl", func(r chi.Router) {
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Get("/schema", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, log, registry.AllEntities())
		})

		// Sessions created here can be resumed with /ws?session=<id>.
		r.Post("/session", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, log, sessions.Create())
		})
	})
	return sessions
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
