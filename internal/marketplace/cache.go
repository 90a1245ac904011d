package marketplace

import (
	"context"
	"encoding/json"
	"time"

	"github.com/purlock/purlock/internal/engine"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is the default lifetime of a cached authenticity lookup.
const DefaultCacheTTL = 5 * time.Minute

const cacheKeyPrefix = "purlock:sale:"

// Cache stores successful purchase-authenticity lookups in Redis for a short
// TTL, sparing the marketplace API on repeated verifications of the same
// code. Failures are never cached, and the cache is best-effort: a Redis
// error degrades to a fresh lookup.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCache creates a Cache. ttl of zero means DefaultCacheTTL.
func NewCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "sale_cache").Logger(),
	}
}

type cachedVerification struct {
	ItemID string          `json:"item_id"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Get returns a cached verification for the purchase code, if present.
func (c *Cache) Get(ctx context.Context, purchaseCode string) (*engine.PurchaseVerification, bool) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+purchaseCode).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("cache read failed")
		}
		return nil, false
	}

	var cached cachedVerification
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed cache entry")
		return nil, false
	}
	return &engine.PurchaseVerification{ItemID: cached.ItemID, Raw: cached.Raw}, true
}

// Set stores a successful verification.
func (c *Cache) Set(ctx context.Context, purchaseCode string, pv *engine.PurchaseVerification) {
	data, err := json.Marshal(cachedVerification{ItemID: pv.ItemID, Raw: pv.Raw})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+purchaseCode, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("cache write failed")
	}
}
