// Package api provides the HTTP server exposing build reports and live logs.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/narvanalabs/codebuild-runner/internal/api/handlers"
	"github.com/narvanalabs/codebuild-runner/internal/api/health"
	"github.com/narvanalabs/codebuild-runner/internal/api/middleware"
	"github.com/narvanalabs/codebuild-runner/internal/auth"
	"github.com/narvanalabs/codebuild-runner/internal/logs"
	"github.com/narvanalabs/codebuild-runner/internal/store"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// DefaultShutdownTimeout bounds Shutdown when Config leaves it unset.
const DefaultShutdownTimeout = 30 * time.Second

// Config holds server settings.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// Cache is the live report cache as seen by the server.
type Cache interface {
	handlers.ReportCache
	handlers.LineSubscriber
	health.Pinger
}

// Database is the report database as seen by the server.
type Database interface {
	Reports() store.ReportStore
	health.Pinger
}

// Backends are the report sources served. Any may be nil.
type Backends struct {
	Database Database
	Cache    Cache
	Broker   *logs.Broker
}

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	config        Config
	backends      Backends
	auth          *auth.Service
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server. A nil authSvc serves /v1 without
// authentication.
func NewServer(cfg Config, backends Backends, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		config:   cfg,
		backends: backends,
		auth:     authSvc,
		logger:   logger,
	}

	s.healthChecker = health.NewChecker(Version)
	if backends.Database != nil {
		s.healthChecker.Register("database", backends.Database)
	}
	if backends.Cache != nil {
		s.healthChecker.Register("cache", backends.Cache)
	}

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))

	r.Get("/health", s.healthChecker.Handler())

	var (
		reportStore store.ReportStore
		reportCache handlers.ReportCache
		lines       handlers.LineSubscriber
	)
	if s.backends.Database != nil {
		reportStore = s.backends.Database.Reports()
	}
	if s.backends.Cache != nil {
		reportCache = s.backends.Cache
		lines = s.backends.Cache
	}

	reportHandler := handlers.NewReportHandler(reportStore, reportCache, s.logger)
	streamHandler := handlers.NewLogStreamHandler(reportHandler, s.backends.Broker, lines, s.logger)

	r.Route("/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(middleware.NewAuthMiddleware(s.auth, s.logger).Authenticate)
		} else {
			s.logger.Warn("report API running without authentication")
		}

		r.Route("/reports", func(r chi.Router) {
			r.With(chimiddleware.Timeout(60*time.Second)).Get("/", reportHandler.List)
			r.With(chimiddleware.Timeout(60*time.Second)).Get("/{buildID}", reportHandler.Get)
			r.Get("/{buildID}/logs/stream", streamHandler.Stream)
		})
	})

	s.router = r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("starting report API server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down report API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
