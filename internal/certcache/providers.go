package certcache

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProviderSet is the Wire provider set for the cert cache.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	ProvideCache,
)

// NewRedisClient constructs the shared Redis client from CacheConfig.
func NewRedisClient(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
}

// ProvideCache builds a Cache from CacheConfig, applying the configured
// list/detail TTLs.
func ProvideCache(client *redis.Client, cfg config.CacheConfig, logger observability.Logger, metrics observability.MetricsCollector) Cache {
	return NewRedisCache(client, logger, metrics, cfg.ListTTL, cfg.DetailTTL)
}
