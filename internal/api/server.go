// Package api implements the HTTP surface for the query engine. It exists
// to give the orchestrator a caller; it is intentionally thin — one route,
// no auth, no pagination.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/nlsql-queryengine/internal/orchestrator"
)

// Config holds values read from environment variables at startup that
// affect the HTTP layer specifically.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string
}

// Server holds all shared dependencies. Handlers are methods on *Server.
type Server struct {
	orch   *orchestrator.QueryOrchestrator
	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(orch *orchestrator.QueryOrchestrator, cfg Config, logger *slog.Logger) http.Handler {
	s := &Server{
		orch:   orch,
		cfg:    cfg,
		logger: logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// ── Health ───────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── Query ────────────────────────────────────────────────────────────
	r.Post("/query", s.handleQuery)

	return r
}
