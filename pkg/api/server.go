// Package api exposes the orchestrator over HTTP. The handlers are thin:
// every session operation goes through the same command dispatcher the CLI
// uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/maestro-ai/maestro/pkg/auth"
	"github.com/maestro-ai/maestro/pkg/orchestrator"
	"github.com/maestro-ai/maestro/pkg/store"
)

// Server is the HTTP server.
type Server struct {
	orch   *orchestrator.Orchestrator
	auth   *auth.Service
	store  store.Store
	logger *slog.Logger

	echo *echo.Echo
	http *http.Server
}

// NewServer creates the server and registers all routes.
func NewServer(orch *orchestrator.Orchestrator, authSvc *auth.Service, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		orch:   orch,
		auth:   authSvc,
		store:  st,
		logger: logger.With("component", "api"),
		echo:   echo.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())

	e.GET("/healthz", s.healthHandler)

	e.POST("/auth/register", s.registerHandler)
	e.POST("/auth/verify", s.verifyHandler)
	e.POST("/auth/login", s.loginHandler)

	sessions := e.Group("/sessions", s.requireAuth)
	sessions.POST("", s.createSessionHandler)
	sessions.GET("", s.listSessionsHandler)
	sessions.GET("/:id", s.getSessionHandler)
	sessions.DELETE("/:id", s.deleteSessionHandler)
	sessions.POST("/:id/command", s.commandHandler)
	sessions.GET("/:id/events", s.eventsHandler)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP server listening", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Echo exposes the underlying router for handler tests.
func (s *Server) Echo() *echo.Echo { return s.echo }
