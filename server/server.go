// Package server provides the HTTP API for memengine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/config"
	"github.com/daybook-ai/memengine/ingest"
	"github.com/daybook-ai/memengine/memory"
)

// Server is the HTTP server for the memengine API.
type Server struct {
	queue     *ingest.Queue
	retriever *memory.Retriever
	suggester memory.TagSuggester
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. The suggester
// may be nil when tag suggestion is not configured.
func NewServer(
	queue *ingest.Queue,
	retriever *memory.Retriever,
	suggester memory.TagSuggester,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		queue:     queue,
		retriever: retriever,
		suggester: suggester,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.requestLogger)

	r.Post("/api/v1/memory/ingest", s.handleIngest)
	r.Post("/api/v1/memory/search", s.handleSearch)
	r.Post("/api/v1/tags/suggest", s.handleSuggestTags)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs each request with method, path, status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
