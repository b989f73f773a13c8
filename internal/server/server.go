package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Byron2306/VAMP/internal/aggregate"
	"github.com/Byron2306/VAMP/internal/pipeline"
)

// Server is the HTTP server for the evidence scoring API.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. DB is optional (nil disables the storage health probe).
type ServerConfig struct {
	Pipeline   *pipeline.Pipeline
	Aggregator *aggregate.Aggregator
	DB         Pinger
	Logger     *slog.Logger

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	ScoreParallelism    int
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Pipeline:            cfg.Pipeline,
		Aggregator:          cfg.Aggregator,
		DB:                  cfg.DB,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		ScoreParallelism:    cfg.ScoreParallelism,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /v1/stats", h.HandleStats)

	mux.HandleFunc("POST /v1/evidence", h.HandleScoreEvidence)

	mux.HandleFunc("GET /v1/collections/{user}/{year}/{month}", h.HandleGetCollection)
	mux.HandleFunc("POST /v1/collections/{user}/{year}/{month}/finalise", h.HandleFinaliseCollection)

	mux.HandleFunc("POST /v1/corpus/reload", h.HandleCorpusReload)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
