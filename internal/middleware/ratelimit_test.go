package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiter_BurstThenDeny(t *testing.T) {
	l := NewClientLimiter(1, 3)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
}

func TestClientLimiter_KeysAreIndependent(t *testing.T) {
	l := NewClientLimiter(1, 1)

	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "a second client has its own bucket")
}

func TestClientLimiter_SweepEvictsOnlyIdle(t *testing.T) {
	l := NewClientLimiter(1, 1)
	l.Allow("stale")
	l.Allow("fresh")
	l.clients["stale"].lastSeen = time.Now().Add(-limiterIdleEviction - time.Minute)

	removed := l.Sweep()

	assert.Equal(t, 1, removed)
	assert.NotContains(t, l.clients, "stale")
	assert.Contains(t, l.clients, "fresh")
}

func TestRateLimit_Returns429AndCountsHit(t *testing.T) {
	metrics := &stubMetrics{}
	limiter := NewClientLimiter(1, 1)
	h := RateLimit(limiter, stubLogger{}, metrics)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/certificates", nil)
	req.RemoteAddr = "10.0.0.5:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, []string{"10.0.0.5"}, metrics.rateLimitHits)
}

func TestRateLimit_KeyedByForwardedFor(t *testing.T) {
	limiter := NewClientLimiter(1, 1)
	h := RateLimit(limiter, stubLogger{}, &stubMetrics{})(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.1")
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.Header.Set("X-Forwarded-For", "203.0.113.2")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code, "different forwarded clients must not share a bucket")
}
