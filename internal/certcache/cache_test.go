package certcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/observability"
)

type stubLogger struct{}

func (stubLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {}
func (stubLogger) Info(ctx context.Context, msg string, fields ...observability.Field)  {}
func (stubLogger) Warn(ctx context.Context, msg string, fields ...observability.Field)  {}
func (stubLogger) Error(ctx context.Context, err error, msg string, fields ...observability.Field) {
}
func (l stubLogger) WithFields(fields ...observability.Field) observability.Logger { return l }
func (l stubLogger) WithContext(ctx context.Context) observability.Logger          { return l }

type stubMetrics struct {
	cacheHits, cacheMisses map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{cacheHits: map[string]int{}, cacheMisses: map[string]int{}}
}

func (m *stubMetrics) RecordCertificateWrite(store, status string)              {}
func (m *stubMetrics) RecordACMEIssuance(result string, duration time.Duration) {}
func (m *stubMetrics) RecordCacheHit(projection string)                         { m.cacheHits[projection]++ }
func (m *stubMetrics) RecordCacheMiss(projection string)                        { m.cacheMisses[projection]++ }
func (m *stubMetrics) RecordEventPublished(eventType, outcome string)           {}
func (m *stubMetrics) RecordEventConsumed(eventType, outcome string)            {}
func (m *stubMetrics) RecordPoolImport(store, result string)                    {}
func (m *stubMetrics) RecordDaysRemainingRecompute(updated int)                 {}
func (m *stubMetrics) RecordRateLimitHit(key string)                           {}

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis, *stubMetrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	metrics := newStubMetrics()
	cache := NewRedisCache(client, stubLogger{}, metrics, time.Minute, 30*time.Second)
	return cache, mr, metrics
}

func TestRedisCache_GetList_MissOnEmpty(t *testing.T) {
	cache, _, metrics := newTestCache(t)
	ctx := context.Background()

	got, err := cache.GetList(ctx, certificate.StoreWebsites, 0, 20)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, metrics.cacheMisses["list"])
}

func TestRedisCache_SetList_ThenGetList_Hits(t *testing.T) {
	cache, _, metrics := newTestCache(t)
	ctx := context.Background()

	entry := ListEntry{
		Items: []certificate.Certificate{{Domain: "example.com"}},
		Total: 1,
	}
	require.NoError(t, cache.SetList(ctx, certificate.StoreWebsites, 0, 20, entry))

	got, err := cache.GetList(ctx, certificate.StoreWebsites, 0, 20)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 1, got.Total)
	require.Equal(t, "example.com", got.Items[0].Domain)
	require.Equal(t, 1, metrics.cacheHits["list"])
}

func TestRedisCache_SetDetail_ThenGetDetail_Hits(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	entry := DetailEntry{Certificate: certificate.Certificate{Domain: "example.com"}}
	require.NoError(t, cache.SetDetail(ctx, certificate.StoreAPIs, "example.com", entry))

	got, err := cache.GetDetail(ctx, certificate.StoreAPIs, "example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "example.com", got.Certificate.Domain)
}

func TestRedisCache_InvalidateStore_RemovesListAndDetailKeys(t *testing.T) {
	cache, mr, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetList(ctx, certificate.StoreWebsites, 0, 20, ListEntry{Total: 0}))
	require.NoError(t, cache.SetDetail(ctx, certificate.StoreWebsites, "example.com", DetailEntry{}))
	require.NoError(t, cache.SetDetail(ctx, certificate.StoreAPIs, "api.example.com", DetailEntry{}))

	require.NoError(t, cache.InvalidateStore(ctx, certificate.StoreWebsites))

	got, err := cache.GetList(ctx, certificate.StoreWebsites, 0, 20)
	require.NoError(t, err)
	require.Nil(t, got)

	detail, err := cache.GetDetail(ctx, certificate.StoreWebsites, "example.com")
	require.NoError(t, err)
	require.Nil(t, detail)

	// Other stores are untouched.
	stillThere, err := cache.GetDetail(ctx, certificate.StoreAPIs, "api.example.com")
	require.NoError(t, err)
	require.NotNil(t, stillThere)

	require.True(t, mr.Exists(detailKey(certificate.StoreAPIs, "api.example.com")))
}
