// Package api provides the HTTP API for the Purlock server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/purlock/purlock/internal/api/handlers"
	"github.com/purlock/purlock/internal/api/middleware"
	"github.com/purlock/purlock/internal/auth"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/config"
	"github.com/purlock/purlock/internal/db"
	"github.com/purlock/purlock/internal/engine"
	"github.com/purlock/purlock/internal/metrics"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls CORS strictness.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m").
	RateLimitPeriod string
	// AdminToken guards the operator endpoints. Empty leaves them unregistered.
	AdminToken string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		RateLimitRequests: 100,
		RateLimitPeriod:   "1m",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	database *db.DB,
	verifier *engine.Verifier,
	resetter *engine.Resetter,
	oauthProvider handlers.OAuthProvider,
	sessions *auth.SessionStore,
	m *metrics.Metrics,
	clk clock.Clock,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	healthHandler := handlers.NewHealthHandler(database, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	metricsHandler := handlers.NewMetricsHandler(m)
	metricsHandler.RegisterPublicRoutes(r.Engine)

	authHandler := handlers.NewAuthHandler(oauthProvider, sessions, database, clk, logger)
	authHandler.RegisterRoutes(r.Engine.Group("/auth"))

	licenseHandler := handlers.NewLicenseHandler(verifier, resetter, database, sessions, m, logger)
	licenseHandler.RegisterRoutes(r.Engine.Group("/api/v1"))

	if cfg.AdminToken != "" {
		adminHandler := handlers.NewAdminHandler(database, cfg.AdminToken, logger)
		adminHandler.RegisterRoutes(r.Engine.Group("/api/v1/admin"))
	}

	return r, nil
}
