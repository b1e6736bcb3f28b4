// Package server exposes the assistant over a local HTTP API: REST routes
// for chat, history, briefing, search, devices and agent tasks, plus a
// websocket event feed that mirrors everything the assistant does.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
	"github.com/xkilldash9x/pocketd/internal/config"
)

const shutdownTimeout = 10 * time.Second

// ChatRunner is the assistant surface the chat routes drive.
type ChatRunner interface {
	HandleUtterance(ctx context.Context, sessionID, text string) (string, string, error)
	NewConversation()
	Stop()
}

// TaskRunner is the browser-agent surface the task routes drive.
type TaskRunner interface {
	RunTask(ctx context.Context, instruction string) (agent.TaskState, error)
	Stop()
	State() agent.TaskState
	TerminateStatus() schemas.TerminateStatus
}

// Deps are the components the server exposes. A nil entry disables its
// routes with 503 responses instead of failing startup, so the service
// still comes up when, say, no Kasa devices or browser are around.
type Deps struct {
	Assistant ChatRunner
	Agent     TaskRunner
	History   schemas.HistoryStore
	Briefing  schemas.BriefingProvider
	Search    schemas.Searcher
	Devices   schemas.DeviceController
	Hub       *Hub
	Logger    *zap.Logger
}

// Server is the local HTTP/websocket front end.
type Server struct {
	cfg  config.ServerConfig
	deps Deps
	log  *zap.Logger
	echo *echo.Echo
	hub  *Hub

	// taskGate serializes agent tasks; the agent runs one at a time.
	taskGate atomic.Bool
	// taskCtx bounds background agent tasks to the server's lifetime. Set
	// once in Run before the listener accepts anything.
	taskCtx context.Context
}

// New builds the server and its routes. The hub in deps is shared with the
// assistant and agent so their events reach websocket clients; when nil a
// private hub is created and the feed only carries what the server itself
// publishes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  logger.Named("Server"),
		hub:  hub,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("Request handled.",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error))
			return nil
		},
	}))
	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	s.echo = e
	s.registerRoutes(e)
	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/health", s.handleHealth)

	api := e.Group("/api/v1")
	if s.cfg.AuthEnabled {
		api.Use(s.requireToken)
	}

	api.GET("/events", s.handleEvents)

	api.POST("/chat", s.handleChat)
	api.POST("/chat/stop", s.handleChatStop)
	api.POST("/chat/new", s.handleChatNew)

	api.GET("/sessions", s.handleSessions)
	api.GET("/sessions/:id/messages", s.handleSessionMessages)
	api.DELETE("/sessions/:id", s.handleSessionDelete)

	api.GET("/briefing", s.handleBriefing)
	api.POST("/search", s.handleSearch)

	api.GET("/devices", s.handleDevices)
	api.POST("/devices/:alias/command", s.handleDeviceCommand)

	api.POST("/agent/task", s.handleAgentStart)
	api.POST("/agent/stop", s.handleAgentStop)
	api.GET("/agent/status", s.handleAgentStatus)
}

// Run starts the listener and blocks until ctx is cancelled, then shuts
// down gracefully and releases websocket subscribers.
func (s *Server) Run(ctx context.Context) error {
	s.taskCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("API server listening.",
		zap.String("addr", s.cfg.Addr()), zap.Bool("auth", s.cfg.AuthEnabled))

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down API server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.echo.Shutdown(shutdownCtx)
	s.hub.Shutdown()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// lifetime is the context for work that outlives a single request, like
// background agent tasks.
func (s *Server) lifetime() context.Context {
	if s.taskCtx != nil {
		return s.taskCtx
	}
	return context.Background()
}

// requireToken guards the API group with bearer-token auth when a secret
// is configured.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("missing bearer token"))
		}
		if err := VerifyToken(token, s.cfg.JWTSecret); err != nil {
			s.log.Debug("Rejected API token.", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, errorBody("invalid token"))
		}
		return next(c)
	}
}

// bearerToken pulls the token from the Authorization header, falling back
// to the token query parameter for websocket clients that cannot set
// headers.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
