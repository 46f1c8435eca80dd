// Package certcache implements the read-through cert cache (C2): list and
// detail projections over the certificate store, backed by Redis.
package certcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ListEntry is the self-describing JSON value stored for a list
// projection.
type ListEntry struct {
	Items []certificate.Certificate `json:"items"`
	Total int                       `json:"total"`
}

// DetailEntry is the merged detail view stored for a single certificate.
type DetailEntry struct {
	Certificate certificate.Certificate `json:"certificate"`
}

// Cache is the read-through cache contract consumed by internal/httpapi
// and invalidated exclusively by internal/events' cache.invalidate
// handler.
type Cache interface {
	GetList(ctx context.Context, store certificate.Store, offset, limit int) (*ListEntry, error)
	SetList(ctx context.Context, store certificate.Store, offset, limit int, entry ListEntry) error

	GetDetail(ctx context.Context, store certificate.Store, domain string) (*DetailEntry, error)
	SetDetail(ctx context.Context, store certificate.Store, domain string, entry DetailEntry) error

	// InvalidateStore deletes every key touching store. Only ever called
	// from the cache.invalidate event consumer, never from a write path.
	InvalidateStore(ctx context.Context, store certificate.Store) error
}

const (
	listTTLKeyPrefix   = "list"
	detailTTLKeyPrefix = "detail"
	scanBatchSize      = 200
)

type redisCache struct {
	client    *redis.Client
	logger    observability.Logger
	metrics   observability.MetricsCollector
	listTTL   time.Duration
	detailTTL time.Duration
}

// NewRedisCache wraps an already-constructed *redis.Client.
func NewRedisCache(client *redis.Client, logger observability.Logger, metrics observability.MetricsCollector, listTTL, detailTTL time.Duration) Cache {
	return &redisCache{
		client:    client,
		logger:    logger,
		metrics:   metrics,
		listTTL:   listTTL,
		detailTTL: detailTTL,
	}
}

func listKey(store certificate.Store, offset, limit int) string {
	return fmt.Sprintf("%s:%s:off=%d:lim=%d", listTTLKeyPrefix, store, offset, limit)
}

func detailKey(store certificate.Store, domain string) string {
	return fmt.Sprintf("%s:%s:%s", detailTTLKeyPrefix, store, domain)
}

func (c *redisCache) GetList(ctx context.Context, store certificate.Store, offset, limit int) (*ListEntry, error) {
	raw, err := c.client.Get(ctx, listKey(store, offset, limit)).Bytes()
	if err == redis.Nil {
		c.metrics.RecordCacheMiss("list")
		return nil, nil
	}
	if err != nil {
		// Best-effort: a cache read error falls through to C1 rather than
		// failing the request.
		c.logger.Warn(ctx, "cert cache list read failed", observability.Error(err))
		c.metrics.RecordCacheMiss("list")
		return nil, nil
	}

	var entry ListEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn(ctx, "cert cache list decode failed", observability.Error(err))
		return nil, nil
	}
	c.metrics.RecordCacheHit("list")
	return &entry, nil
}

func (c *redisCache) SetList(ctx context.Context, store certificate.Store, offset, limit int, entry ListEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return certerrors.WrapError(certerrors.ErrCodeInternal, "encode list cache entry", err)
	}
	if err := c.client.Set(ctx, listKey(store, offset, limit), raw, c.listTTL).Err(); err != nil {
		// Cache writes are best-effort; log and continue.
		c.logger.Warn(ctx, "cert cache list write failed", observability.Error(err))
	}
	return nil
}

func (c *redisCache) GetDetail(ctx context.Context, store certificate.Store, domain string) (*DetailEntry, error) {
	raw, err := c.client.Get(ctx, detailKey(store, domain)).Bytes()
	if err == redis.Nil {
		c.metrics.RecordCacheMiss("detail")
		return nil, nil
	}
	if err != nil {
		c.logger.Warn(ctx, "cert cache detail read failed", observability.Error(err))
		c.metrics.RecordCacheMiss("detail")
		return nil, nil
	}

	var entry DetailEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn(ctx, "cert cache detail decode failed", observability.Error(err))
		return nil, nil
	}
	c.metrics.RecordCacheHit("detail")
	return &entry, nil
}

func (c *redisCache) SetDetail(ctx context.Context, store certificate.Store, domain string, entry DetailEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return certerrors.WrapError(certerrors.ErrCodeInternal, "encode detail cache entry", err)
	}
	if err := c.client.Set(ctx, detailKey(store, domain), raw, c.detailTTL).Err(); err != nil {
		c.logger.Warn(ctx, "cert cache detail write failed", observability.Error(err))
	}
	return nil
}

// InvalidateStore does a SCAN+DEL over *:{store}* so it catches both list
// and detail keys for the store without requiring O(n) exact key
// knowledge.
func (c *redisCache) InvalidateStore(ctx context.Context, store certificate.Store) error {
	pattern := fmt.Sprintf("*:%s*", store)

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return certerrors.WrapError(certerrors.ErrCodeCacheUnavailable, "scan cache keys for invalidation", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return certerrors.WrapError(certerrors.ErrCodeCacheUnavailable, "delete invalidated cache keys", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Info(ctx, "cert cache invalidated",
		observability.Store(string(store)),
		observability.Int("keys_deleted", deleted),
	)
	return nil
}
