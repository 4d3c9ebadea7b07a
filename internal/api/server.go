// Package api exposes the calculation engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/alerts"
	"github.com/cardio-cdss-server/internal/config"
	"github.com/cardio-cdss-server/internal/domain"
	"github.com/cardio-cdss-server/internal/middleware"
	"github.com/cardio-cdss-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
	service *service.CalculationService

	registry domain.CalculatorRegistry
	reader   domain.AuditReader
	hub      *alerts.Hub
}

// NewServer creates a new HTTP server instance
func NewServer(
	cfg *config.Config,
	calcService *service.CalculationService,
	registry domain.CalculatorRegistry,
	reader domain.AuditReader,
	hub *alerts.Hub,
	logger *logrus.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.CorrelationID())

	server := &Server{
		config:   cfg,
		logger:   logger,
		router:   router,
		service:  calcService,
		registry: registry,
		reader:   reader,
		hub:      hub,
	}

	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.ActorRequired())

	if s.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
		v1.Use(limiter.Middleware())
	}

	cdss := v1.Group("/cdss")
	{
		cdss.GET("", s.handleListCalculators)
		cdss.POST("/:calculator_id", s.handleCalculate)
		cdss.GET("/audit", s.handleListAuditRecords)
		cdss.GET("/audit/:id", s.handleGetAuditRecord)
	}

	if s.hub != nil {
		v1.GET("/alerts/stream", s.handleAlertStream)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Actor-ID, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"calculators": len(s.registry.List()),
	})
}

// handleAlertStream upgrades the connection to a WebSocket alert feed.
func (s *Server) handleAlertStream(c *gin.Context) {
	s.hub.ServeHTTP(c.Writer, c.Request)
}
