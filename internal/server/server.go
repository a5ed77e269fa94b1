// Package server is the HTTP chassis of the local replay server. It runs
// single build events through the notification pipeline on demand, or
// enqueues them for the deployed worker.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"buildnotify/internal/config"
	"buildnotify/internal/worker"
)

// defaultRequestTimeout bounds one replay: enrichment calls plus the
// webhook POST.
const defaultRequestTimeout = 60 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// Processor runs a batch through the notification pipeline.
type Processor interface {
	ProcessBatch(ctx context.Context, msgs []worker.Message) worker.BatchResult
}

// Publisher enqueues a raw build event.
type Publisher interface {
	Configured() bool
	Publish(ctx context.Context, body []byte) (string, error)
}

// Server holds the replay server dependencies. Publisher is optional.
type Server struct {
	Config    *config.Config
	Processor Processor
	Publisher Publisher
	Logger    *slog.Logger

	router *chi.Mux
}

// NewServer creates a Server and mounts its routes.
func NewServer(cfg *config.Config, processor Processor, publisher Publisher, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if processor == nil {
		return nil, errors.New("processor must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Processor: processor,
		Publisher: publisher,
		Logger:    logger,
		router:    chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the root handler with response compression applied.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// mountRoutes registers middleware then routes. RequestID runs first so
// panic responses still carry the request id.
func (s *Server) mountRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))

	s.router.Get("/healthz", s.HandleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/build-events", s.HandleBuildEvent)
	})
}
