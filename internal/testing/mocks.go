package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

type MockLogger struct {
	mock.Mock
	CallCount int64
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	atomic.AddInt64(&m.CallCount, 1)
	args := make([]interface{}, 0, len(fields)+2)
	args = append(args, ctx, msg)
	for _, field := range fields {
		args = append(args, field)
	}
	m.Called(args...)
}

func (m *MockLogger) Error(ctx context.Context, err error, msg string, fields ...observability.Field) {
	atomic.AddInt64(&m.CallCount, 1)
	args := make([]interface{}, 0, len(fields)+3)
	args = append(args, ctx, err, msg)
	for _, field := range fields {
		args = append(args, field)
	}
	m.Called(args...)
}

func (m *MockLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	atomic.AddInt64(&m.CallCount, 1)
	args := make([]interface{}, 0, len(fields)+2)
	args = append(args, ctx, msg)
	for _, field := range fields {
		args = append(args, field)
	}
	m.Called(args...)
}

func (m *MockLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	atomic.AddInt64(&m.CallCount, 1)
	args := make([]interface{}, 0, len(fields)+2)
	args = append(args, ctx, msg)
	for _, field := range fields {
		args = append(args, field)
	}
	m.Called(args...)
}

func (m *MockLogger) WithFields(fields ...observability.Field) observability.Logger {
	args := make([]interface{}, len(fields))
	for i, field := range fields {
		args[i] = field
	}
	m.Called(args...)
	return m
}

func (m *MockLogger) WithContext(ctx context.Context) observability.Logger {
	m.Called(ctx)
	return m
}

func (m *MockLogger) GetCallCount() int64 {
	return atomic.LoadInt64(&m.CallCount)
}

// MockMetricsCollector satisfies observability.MetricsCollector, recording
// every call for assertion in addition to going through testify's mock.Mock
// expectation machinery when callers set expectations.
type MockMetricsCollector struct {
	mock.Mock
	Counters map[string]float64
	mu       sync.RWMutex
}

func NewMockMetricsCollector() *MockMetricsCollector {
	return &MockMetricsCollector{
		Counters: make(map[string]float64),
	}
}

func (m *MockMetricsCollector) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[key]++
}

func (m *MockMetricsCollector) GetCounterValue(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Counters[name]
}

func (m *MockMetricsCollector) RecordCertificateWrite(store, status string) {
	m.inc("certificate_write:" + store + ":" + status)
	m.Called(store, status)
}

func (m *MockMetricsCollector) RecordACMEIssuance(result string, duration time.Duration) {
	m.inc("acme_issuance:" + result)
	m.Called(result, duration)
}

func (m *MockMetricsCollector) RecordCacheHit(projection string) {
	m.inc("cache_hit:" + projection)
	m.Called(projection)
}

func (m *MockMetricsCollector) RecordCacheMiss(projection string) {
	m.inc("cache_miss:" + projection)
	m.Called(projection)
}

func (m *MockMetricsCollector) RecordEventPublished(eventType, outcome string) {
	m.inc("event_published:" + eventType + ":" + outcome)
	m.Called(eventType, outcome)
}

func (m *MockMetricsCollector) RecordEventConsumed(eventType, outcome string) {
	m.inc("event_consumed:" + eventType + ":" + outcome)
	m.Called(eventType, outcome)
}

func (m *MockMetricsCollector) RecordPoolImport(store, result string) {
	m.inc("pool_import:" + store + ":" + result)
	m.Called(store, result)
}

func (m *MockMetricsCollector) RecordDaysRemainingRecompute(updated int) {
	m.inc("days_remaining_recompute")
	m.Called(updated)
}

func (m *MockMetricsCollector) RecordRateLimitHit(key string) {
	m.inc("rate_limit_hit:" + key)
	m.Called(key)
}

func (m *MockMetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters = make(map[string]float64)
}

type MockConfigLoader struct {
	mock.Mock
	config *config.Config
	mu     sync.RWMutex
}

func NewMockConfigLoader() *MockConfigLoader {
	return &MockConfigLoader{
		config: GetTestConfig(),
	}
}

func (m *MockConfigLoader) Load() (*config.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	args := m.Called()

	if cfg, ok := args.Get(0).(*config.Config); ok {
		return cfg, args.Error(1)
	}

	return m.config, args.Error(1)
}

func (m *MockConfigLoader) Validate(cfg *config.Config) error {
	args := m.Called(cfg)
	return args.Error(0)
}

func (m *MockConfigLoader) Watch(ctx context.Context) (<-chan *config.Config, error) {
	args := m.Called(ctx)

	if ch, ok := args.Get(0).(<-chan *config.Config); ok {
		return ch, args.Error(1)
	}

	ch := make(chan *config.Config, 1)
	ch <- m.config
	close(ch)

	return ch, args.Error(1)
}

func (m *MockConfigLoader) SetConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}
