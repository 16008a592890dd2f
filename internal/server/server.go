// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"go.uber.org/zap"
)

// Service is the subset of *rag.Service the API needs.
type Service interface {
	Ingest(ctx context.Context, paths []string) (models.IngestionStats, error)
	Upload(ctx context.Context, filename string, r io.Reader, size int64) (models.IngestionStats, error)
	Query(ctx context.Context, question string, topK int) (*models.Answer, error)
	Stats(ctx context.Context) (*rag.Status, error)
}

// Server is the HTTP server for the kotae API.
type Server struct {
	service     Service
	config      config.ServerConfig
	environment string
	maxUpload   int64
	metrics     *metrics.Metrics
	logger      *zap.Logger
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes the registry on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithEnvironment sets the environment name reported by /health.
func WithEnvironment(name string) Option {
	return func(s *Server) { s.environment = name }
}

// WithMaxUploadBytes bounds the multipart body accepted by /documents/upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// NewServer creates a server with the given dependencies.
func NewServer(service Service, cfg config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:     service,
		config:      cfg,
		environment: "development",
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/ingest", s.handleIngest)
	r.Post("/query", s.handleQuery)
	r.Post("/documents/upload", s.handleUpload)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
