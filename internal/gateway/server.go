package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/nuruhealth/nurugw/internal/config"
	"github.com/nuruhealth/nurugw/internal/observability"
)

// Server runs the gateway over HTTP.
type Server struct {
	gateway    *Gateway
	httpServer *http.Server
	logger     observability.Logger
	cfg        config.ServerConfig

	mu      sync.Mutex
	running bool
}

// NewServer creates an HTTP server around the gateway.
func NewServer(g *Gateway, cfg config.ServerConfig, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Server{
		gateway: g,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start runs the server. It blocks until the listener fails or the
// server is stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.gateway.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.WriteTimeout.Duration(),
		IdleTimeout:  s.cfg.IdleTimeout.Duration(),
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
		observability.Duration("readTimeout", s.cfg.ReadTimeout.Duration()),
		observability.Duration("writeTimeout", s.cfg.WriteTimeout.Duration()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
