package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/domainwatch/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server over h. health may be nil.
func NewServer(cfg config.ServerConfig, h *Handlers, health *HealthChecker, cronSecret string) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, health, cronSecret),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Verification and revalidation make outbound calls; WriteTimeout
		// leaves room for a full method cascade.
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
