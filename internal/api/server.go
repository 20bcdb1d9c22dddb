// Package api provides the HTTP server for the Vertex Bridge. It wires the
// Gin engine, routing (with and without the /v1 prefix), the static-key
// authorization middleware, and graceful shutdown.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/luispater/VertexBridge/internal/api/handlers"
	"github.com/luispater/VertexBridge/internal/api/middleware"
	"github.com/luispater/VertexBridge/internal/config"
	"github.com/luispater/VertexBridge/internal/logging"
)

// Server is the Vertex Bridge HTTP front.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	handlers *handlers.APIHandler
}

// NewServer creates and initializes the API server: engine, middleware,
// routes and the underlying http.Server.
func NewServer(cfg *config.Config, apiHandlers *handlers.APIHandler) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(middleware.RequestLogging(func() bool { return apiHandlers.Config().RequestLog }))
	engine.Use(corsMiddleware())

	s := &Server{
		engine:   engine,
		handlers: apiHandlers,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    net.JoinHostPort(cfg.Bind, fmt.Sprintf("%d", cfg.Port)),
		Handler: engine,
	}
	return s
}

// setupRoutes registers the liveness endpoint and the proxied API surface,
// the latter reachable both bare and under /v1.
func (s *Server) setupRoutes() {
	s.engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello, this is Vertex Bridge!")
	})

	auth := s.authMiddleware()
	for _, prefix := range []string{"", "/v1"} {
		group := s.engine.Group(prefix)
		group.Use(auth)
		{
			group.GET("/chat/completions", s.handlers.ChatCompletions)
			group.POST("/chat/completions", s.handlers.ChatCompletions)
			group.GET("/models", s.handlers.Models)
		}
	}
}

// authMiddleware enforces the static bearer key when one is configured. The
// header must be exactly two whitespace-separated parts with a
// case-insensitive "Bearer" scheme, and the check runs before any request
// body is read. A key with a bcrypt prefix is treated as a hash of the real
// key; anything else compares exact.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := s.handlers.Config().Key
		if key == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("missing Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			log.Warnf("invalid Authorization header format: %s", authHeader)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}

		if !keyMatches(key, parts[1]) {
			log.Warn("invalid API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Next()
	}
}

// keyMatches compares the presented key against the configured one,
// supporting bcrypt-hashed configured keys.
func keyMatches(configured, provided string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(provided)) == nil
	}
	return configured == provided
}

// UpdateConfig applies a hot-reloaded configuration to the running server.
// Bind and port changes require a restart and are only logged.
func (s *Server) UpdateConfig(cfg *config.Config) {
	old := s.handlers.Config()
	if old.Bind != cfg.Bind || old.Port != cfg.Port {
		log.Warn("bind/port changes require a restart to take effect")
	}
	if old.Debug != cfg.Debug {
		if cfg.Debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
		log.Debugf("debug mode updated from %t to %t", old.Debug, cfg.Debug)
	}
	s.handlers.UpdateConfig(cfg)
	log.Info("server configuration updated")
}

// Start begins listening for and serving HTTP requests. It blocks until the
// server stops.
func (s *Server) Start() error {
	log.Infof("starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the API server without interrupting any active
// connections, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	log.Debug("API server stopped")
	return nil
}

// Engine exposes the underlying Gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// corsMiddleware adds permissive CORS headers to every response.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
