// Package config provides configuration management for Purlock.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string
	DatabaseURL string

	// Session cookie settings for the self-service reset flow.
	SessionSecret string
	SessionMaxAge int // seconds

	// HTTP surface.
	AllowedOrigins    []string
	RateLimitRequests int64
	RateLimitPeriod   string

	// AdminToken guards the operator endpoints. Empty disables them.
	AdminToken string

	// Item catalog: a YAML file path, or the inline "item:mode,..." form.
	// CatalogFile wins when both are set.
	CatalogFile string
	Catalog     string

	// Marketplace API.
	MarketAPIBaseURL    string
	MarketAuthBaseURL   string
	MarketPersonalToken string
	OAuthClientID       string
	OAuthClientSecret   string
	OAuthRedirectURL    string

	// Optional Redis cache for authenticity lookups. Empty addr disables it.
	RedisAddr     string
	RedisPassword string
	SaleCacheTTL  time.Duration
}

// LoadServerConfig reads server configuration from environment variables.
// Required values are validated by the caller so it can log what is missing.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	return ServerConfig{
		Environment: env,
		ListenAddr:  getEnvString("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 86400),

		AllowedOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		RateLimitRequests: int64(getEnvInt("RATE_LIMIT_REQUESTS", 100)),
		RateLimitPeriod:   getEnvString("RATE_LIMIT_PERIOD", "1m"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),

		CatalogFile: os.Getenv("CATALOG_FILE"),
		Catalog:     os.Getenv("CATALOG"),

		MarketAPIBaseURL:    os.Getenv("MARKET_API_BASE_URL"),
		MarketAuthBaseURL:   os.Getenv("MARKET_AUTH_BASE_URL"),
		MarketPersonalToken: os.Getenv("MARKET_PERSONAL_TOKEN"),
		OAuthClientID:       os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:   os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthRedirectURL:    os.Getenv("OAUTH_REDIRECT_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		SaleCacheTTL:  getEnvDuration("SALE_CACHE_TTL", 5*time.Minute),
	}
}

// getEnvString reads a string from an environment variable, returning the
// default if unset.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable, returning the
// default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a duration from an environment variable, returning
// the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitList splits a comma-separated environment value into trimmed entries.
func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
