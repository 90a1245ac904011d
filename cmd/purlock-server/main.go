// Package main is the entrypoint for the Purlock server: it issues and
// enforces marketplace software licenses, binding each purchase code to a
// single device or network address.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/purlock/purlock/internal/api"
	"github.com/purlock/purlock/internal/auth"
	"github.com/purlock/purlock/internal/catalog"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/config"
	"github.com/purlock/purlock/internal/db"
	"github.com/purlock/purlock/internal/engine"
	"github.com/purlock/purlock/internal/marketplace"
	"github.com/purlock/purlock/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("starting Purlock server")

	cfg := config.LoadServerConfig()

	if cfg.DatabaseURL == "" {
		logger.Error().Msg("DATABASE_URL environment variable is required")
		return 1
	}
	if cfg.SessionSecret == "" {
		logger.Error().Msg("SESSION_SECRET environment variable is required")
		return 1
	}
	if cfg.MarketAPIBaseURL == "" || cfg.MarketAuthBaseURL == "" {
		logger.Error().Msg("MARKET_API_BASE_URL and MARKET_AUTH_BASE_URL are required")
		return 1
	}
	if cfg.MarketPersonalToken == "" {
		logger.Error().Msg("MARKET_PERSONAL_TOKEN environment variable is required")
		return 1
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load item catalog")
		return 1
	}
	logger.Info().Int("items", cat.Len()).Msg("item catalog loaded")

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return 1
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")
		return 1
	}

	var cache *marketplace.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error().Err(err).Msg("failed to connect to Redis")
			return 1
		}
		cache = marketplace.NewCache(rdb, cfg.SaleCacheTTL, logger)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("sale cache enabled")
	}

	market := marketplace.New(marketplace.Config{
		APIBaseURL:    cfg.MarketAPIBaseURL,
		AuthBaseURL:   cfg.MarketAuthBaseURL,
		PersonalToken: cfg.MarketPersonalToken,
		ClientID:      cfg.OAuthClientID,
		ClientSecret:  cfg.OAuthClientSecret,
		RedirectURL:   cfg.OAuthRedirectURL,
	}, cache, logger)

	sessionCfg := auth.DefaultSessionConfig([]byte(cfg.SessionSecret), cfg.Environment == config.EnvProduction)
	sessionCfg.MaxAge = cfg.SessionMaxAge
	sessions, err := auth.NewSessionStore(sessionCfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create session store")
		return 1
	}

	clk := clock.System{}
	binder := engine.NewBinder(database, clk, logger)
	verifier := engine.NewVerifier(cat, market, database, binder, clk, logger)
	resetter := engine.NewResetter(market, database, database, database, clk, logger)

	m := metrics.New()

	router, err := api.NewRouter(api.Config{
		Environment:       cfg.Environment,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		AdminToken:        cfg.AdminToken,
	}, database, verifier, resetter, market, sessions, m, clk, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server failed")
			return 1
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			return 1
		}
	}

	logger.Info().Msg("server stopped")
	return 0
}

// loadCatalog builds the item catalog from CATALOG_FILE or the inline
// CATALOG shorthand.
func loadCatalog(cfg config.ServerConfig) (*catalog.Catalog, error) {
	if cfg.CatalogFile != "" {
		return catalog.LoadFile(cfg.CatalogFile)
	}
	return catalog.Parse(cfg.Catalog)
}
