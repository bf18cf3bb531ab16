// Package http provides the HTTP server, router and shared middleware.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/recordvault/internal/config"
	grantHTTP "github.com/allisson/recordvault/internal/grant/http"
	identityHTTP "github.com/allisson/recordvault/internal/identity/http"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
	"github.com/allisson/recordvault/internal/metrics"
	recordHTTP "github.com/allisson/recordvault/internal/record/http"
)

// ReadinessChecker reports whether the ledger backend is reachable. *sql.DB and the
// in-memory store both satisfy it.
type ReadinessChecker interface {
	PingContext(ctx context.Context) error
}

// Handlers groups the API handlers mounted under /v1.
type Handlers struct {
	Users   *identityHTTP.UserHandler
	Records *recordHTTP.RecordHandler
	Grants  *grantHTTP.GrantHandler
}

// Server represents the HTTP server.
type Server struct {
	checker ReadinessChecker
	router  *gin.Engine
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates a new HTTP server. A nil checker reports not ready.
func NewServer(
	checker ReadinessChecker,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		checker: checker,
		logger:  logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine. Every /v1 route requires an identity proof; the rate
// limiter runs after the session is opened so buckets are per identity. ctx bounds the
// rate limiter's background cleanup.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	sessions identityUseCase.SessionUseCase,
	handlers Handlers,
	metricsProvider *metrics.Provider,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(identityHTTP.SessionMiddleware(sessions, s.logger))
	if cfg.RateLimitEnabled {
		v1.Use(identityHTTP.RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	users := v1.Group("/users")
	{
		users.POST("", handlers.Users.RegisterHandler)
		users.GET("", handlers.Users.ListHandler)
		users.GET("/stats", handlers.Users.StatsHandler)
		users.GET("/:address", handlers.Users.GetHandler)
		users.PUT("/:address", handlers.Users.UpdateHandler)
	}

	v1.GET("/grantees", handlers.Users.GranteesHandler)

	owners := v1.Group("/owners/:owner")
	{
		owners.POST("/records", handlers.Records.UploadHandler)
		owners.GET("/records", handlers.Records.ListHandler)
	}
	v1.GET("/records/:id", handlers.Records.GetHandler)

	grants := v1.Group("/grants")
	{
		grants.POST("", handlers.Grants.CreateHandler)
		grants.GET("", handlers.Grants.ListHandler)
		grants.GET("/owners", handlers.Grants.ListOwnersHandler)
		grants.DELETE("/:grantee", handlers.Grants.RevokeHandler)
	}

	s.router = router
}

// GetHandler returns the router built by SetupRouter.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server. SetupRouter must be called first.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.checker == nil || s.checker.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}
