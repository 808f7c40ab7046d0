// Package server assembles the HTTP + WebSocket API in front of the ledger
// services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/server/handler"
	"github.com/veloralabs/liqlock/internal/server/middleware"
	"github.com/veloralabs/liqlock/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey gates all API routes; empty disables authentication.
	APIKey string
	// RateLimit is requests per RateWindow per client IP; zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Locks  *handler.LockHandler
	Lookup *handler.LookupHandler
	Events *handler.EventsHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain applied. limiter may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required for the route itself; auth middleware
	// is chain-wide, so deployments that need an open health probe run with
	// APIKey unset on an internal port).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Lock lifecycle.
	mux.HandleFunc("POST /api/locks", handlers.Locks.CreateLock)
	mux.HandleFunc("GET /api/locks/{claimId}", handlers.Locks.GetLock)
	mux.HandleFunc("GET /api/locks/{claimId}/available", handlers.Locks.GetAvailable)
	mux.HandleFunc("POST /api/locks/{claimId}/withdraw", handlers.Locks.Withdraw)
	mux.HandleFunc("POST /api/locks/{claimId}/collect", handlers.Locks.Collect)
	mux.HandleFunc("POST /api/locks/{claimId}/release", handlers.Locks.Release)

	// Reverse index.
	mux.HandleFunc("GET /api/lookup/underlying/{positionId}", handlers.Lookup.ByUnderlying)

	// Event log.
	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
