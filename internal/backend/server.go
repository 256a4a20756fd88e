// Package backend is the reference HTTP backend the ragchat client talks to.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/logger"
	"github.com/comigor/ragchat-go/internal/responder"
)

// Version is reported by / and /health.
const Version = "1.0.0"

// DefaultMaxSources bounds the sources attached to a chat reply.
const DefaultMaxSources = 3

// Server serves the chat and document API.
type Server struct {
	echo       *echo.Echo
	documents  Documents
	convs      Conversations
	responder  responder.Responder
	metrics    *metrics
	now        func() time.Time
	maxSources int
	bodyLimit  int64
	origins    []string
}

type Option func(*Server)

// WithClock overrides time.Now for reply and health timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithMaxSources overrides DefaultMaxSources. Zero disables sources.
func WithMaxSources(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.maxSources = n
		}
	}
}

// WithBodyLimit rejects request bodies above n bytes with 413.
func WithBodyLimit(n int64) Option {
	return func(s *Server) { s.bodyLimit = n }
}

// WithAllowOrigins replaces the default CORS origins.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New wires the routes. docs, convs and r must not be nil.
func New(docs Documents, convs Conversations, r responder.Responder, opts ...Option) *Server {
	s := &Server{
		echo:       echo.New(),
		documents:  docs,
		convs:      convs,
		responder:  r,
		metrics:    newMetrics(),
		now:        time.Now,
		maxSources: DefaultMaxSources,
		origins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://0.0.0.0:3000",
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.L.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	}))
	if s.bodyLimit > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (s.bodyLimit+1023)/1024)))
	}
	e.Use(s.metrics.middleware)

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", s.metrics.handler())

	v1 := e.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.GET("/chat/history/:id", s.handleHistory)
	v1.DELETE("/chat/history/:id", s.handleClearHistory)
	v1.GET("/documents", s.handleListDocuments)
	v1.POST("/documents/upload", s.handleUpload)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. It returns http.ErrServerClosed after
// a graceful shutdown.
func (s *Server) Start(addr string) error {
	logger.L.Info("backend listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "RAG Backend API is running!",
		"version": Version,
		"status":  "healthy",
		"endpoints": map[string]string{
			"chat":      "/api/v1/chat",
			"documents": "/api/v1/documents",
			"health":    "/health",
			"metrics":   "/metrics",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, api.HealthStatus{
		Status:    "healthy",
		Timestamp: api.Timestamp{Time: s.now()},
		Version:   Version,
	})
}
