// Package server owns the HTTP listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agropulse/cropalert-go/internal/application/container"
	"github.com/agropulse/cropalert-go/internal/presentation/http/routes"
	"github.com/agropulse/cropalert-go/pkg/config"
)

// Server binds the route tree to a net/http server. Timeouts apply to
// plain HTTP only; websocket connections are hijacked out of the
// server's control after the upgrade.
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New builds the server on the given port with routes wired from the
// container.
func New(port string, c *container.Container) *Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      routes.SetupRoutes(c),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	return &Server{httpServer: httpServer, container: c}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving requests until Stop is called or the listener
// fails.
func (s *Server) Start() error {
	s.container.Logger.Startup().Info("HTTP server listening", "addr", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	s.container.Logger.Shutdown().Info("HTTP server stopping", "addr", s.httpServer.Addr)
	return s.httpServer.Shutdown(ctx)
}
