package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mailforge/mailforge/internal/audit"
	"github.com/mailforge/mailforge/internal/config"
	"github.com/mailforge/mailforge/internal/httputil"
)

// Server is the factory's API server. It exposes health probes and a
// read-only view of the audit trail.
type Server struct {
	server *http.Server
	logger *slog.Logger
	trail  *audit.Trail
}

// NewServer creates the API server and its router.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	trail *audit.Trail,
) *Server {
	gin.SetMode(cfg.GetGinMode())

	server := &Server{
		logger: logger,
		trail:  trail,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", server.healthHandler)
	router.GET("/ready", server.readinessHandler)

	v1 := router.Group("/v1")
	v1.GET("/audit/entries", server.auditEntriesHandler)

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports readiness. The server is ready once the audit
// trail accepts entries.
func (s *Server) readinessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// auditEntriesHandler serves filtered audit entries, newest first.
// Query parameters: since and until (RFC 3339), event, result, limit.
func (s *Server) auditEntriesHandler(c *gin.Context) {
	options := audit.QueryOptions{
		Event:  audit.Event(c.Query("event")),
		Result: audit.Result(c.Query("result")),
		Limit:  100,
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.HandleBadRequestGin(c, fmt.Errorf("invalid since parameter: %w", err), s.logger)
			return
		}
		options.Since = &since
	}
	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.HandleBadRequestGin(c, fmt.Errorf("invalid until parameter: %w", err), s.logger)
			return
		}
		options.Until = &until
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.HandleBadRequestGin(c, fmt.Errorf("invalid limit parameter %q", raw), s.logger)
			return
		}
		options.Limit = limit
	}

	// Queued entries become visible only after a flush.
	s.trail.Flush()

	entries, err := s.trail.Query(options)
	if err != nil {
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
