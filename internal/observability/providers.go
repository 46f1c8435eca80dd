package observability

import (
	"context"
	"time"

	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for observability components.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetricsCollector,
	ProvideMetricsExporter,
	ProvideTracer,
	ProvideObservabilityProvider,
)

// ProvideLogger creates a new logger instance using the provided configuration.
func ProvideLogger(config LoggingConfig) Logger {
	return NewLogger(config)
}

// ProvideMetricsCollector creates a new metrics collector instance.
func ProvideMetricsCollector(config MetricsConfig) MetricsCollector {
	if !config.Enabled {
		return &noopMetricsCollector{}
	}

	namespace := config.Namespace
	if namespace == "" {
		namespace = "tlscertd"
	}

	subsystem := config.Subsystem
	if subsystem == "" {
		subsystem = "certificate"
	}

	return NewPrometheusCollector(namespace, subsystem)
}

// ProvideMetricsExporter creates a new metrics exporter instance.
func ProvideMetricsExporter(collector MetricsCollector, config MetricsConfig) MetricsExporter {
	return NewMetricsExporter(collector, config)
}

// ProvideTracer creates a new tracer instance.
func ProvideTracer(config TracingConfig) Tracer {
	return NewTracer(config)
}

// ProvideObservabilityProvider creates a complete observability provider.
func ProvideObservabilityProvider(
	logger Logger,
	metrics MetricsCollector,
	tracer Tracer,
	exporter MetricsExporter,
) ObservabilityProvider {
	return &observabilityProvider{
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		exporter: exporter,
	}
}

// NewTracer creates a no-op tracer for now.
// This is a placeholder implementation.
func NewTracer(config TracingConfig) Tracer {
	return &noopTracer{}
}

// Placeholder implementations for no-op components.
// noopMetricsCollector is a placeholder metrics collector that does nothing.
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) RecordCertificateWrite(store, status string)              {}
func (n *noopMetricsCollector) RecordACMEIssuance(result string, duration time.Duration) {}
func (n *noopMetricsCollector) RecordCacheHit(projection string)                         {}
func (n *noopMetricsCollector) RecordCacheMiss(projection string)                        {}
func (n *noopMetricsCollector) RecordEventPublished(eventType, outcome string)           {}
func (n *noopMetricsCollector) RecordEventConsumed(eventType, outcome string)            {}
func (n *noopMetricsCollector) RecordPoolImport(store, result string)                    {}
func (n *noopMetricsCollector) RecordDaysRemainingRecompute(updated int)                 {}
func (n *noopMetricsCollector) RecordRateLimitHit(key string)                            {}

// noopTracer is a placeholder tracer that does nothing.
type noopTracer struct{}

func (n *noopTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *noopTracer) InjectHeaders(ctx context.Context, headers map[string]string) {}

func (n *noopTracer) ExtractHeaders(headers map[string]string) context.Context {
	return context.Background()
}

// noopSpan is a placeholder span that does nothing.
type noopSpan struct{}

func (n *noopSpan) SetTag(key string, value interface{})                    {}
func (n *noopSpan) SetError(err error)                                      {}
func (n *noopSpan) AddEvent(name string, attributes map[string]interface{}) {}
func (n *noopSpan) Finish()                                                 {}
func (n *noopSpan) Context() context.Context {
	return context.Background()
}

// observabilityProvider implements ObservabilityProvider interface.
type observabilityProvider struct {
	logger   Logger
	metrics  MetricsCollector
	tracer   Tracer
	exporter MetricsExporter
}

// Logger returns the configured logger instance.
func (o *observabilityProvider) Logger() Logger {
	return o.logger
}

// Metrics returns the configured metrics collector.
func (o *observabilityProvider) Metrics() MetricsCollector {
	return o.metrics
}

// Tracer returns the configured tracer instance.
func (o *observabilityProvider) Tracer() Tracer {
	return o.tracer
}

// Shutdown gracefully shuts down all observability components.
func (o *observabilityProvider) Shutdown(ctx context.Context) error {
	if o.exporter != nil {
		return o.exporter.Stop(ctx)
	}
	return nil
}

// Start initializes all observability components.
func (o *observabilityProvider) Start(ctx context.Context) error {
	if o.exporter != nil {
		return o.exporter.Start(ctx)
	}
	return nil
}
