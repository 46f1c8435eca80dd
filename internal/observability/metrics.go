package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusCollector struct {
	certificatesTotal *prometheus.CounterVec

	acmeIssuanceTotal    *prometheus.CounterVec
	acmeIssuanceDuration *prometheus.HistogramVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	eventsPublishedTotal *prometheus.CounterVec
	eventsConsumedTotal  *prometheus.CounterVec

	poolImportTotal             *prometheus.CounterVec
	daysRemainingRecomputeTotal prometheus.Counter
	daysRemainingUpdatedTotal   prometheus.Counter

	rateLimitHitsTotal *prometheus.CounterVec

	startTime prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
	mutex    sync.RWMutex
}

func NewPrometheusCollector(namespace, subsystem string) MetricsCollector {
	registry := prometheus.NewRegistry()

	collector := &prometheusCollector{
		registry: registry,

		certificatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "certificates_total",
				Help:      "Total number of certificate store writes",
			},
			[]string{"store", "status"},
		),

		acmeIssuanceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "acme_issuance_total",
				Help:      "Total number of ACME issuance attempts",
			},
			[]string{"result"},
		),

		acmeIssuanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "acme_issuance_duration_seconds",
				Help:      "Time spent running the ACME client subprocess",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		),

		cacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"projection"},
		),

		cacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"projection"},
		),

		eventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "event_bus_messages_published_total",
				Help:      "Total number of event bus messages published",
			},
			[]string{"event_type", "outcome"},
		),

		eventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "event_bus_messages_consumed_total",
				Help:      "Total number of event bus messages consumed",
			},
			[]string{"event_type", "outcome"},
		),

		poolImportTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pool_import_total",
				Help:      "Total number of filesystem pool import runs",
			},
			[]string{"store", "result"},
		),

		daysRemainingRecomputeTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "days_remaining_recompute_runs_total",
				Help:      "Total number of days-remaining recompute passes",
			},
		),

		daysRemainingUpdatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "days_remaining_updated_rows_total",
				Help:      "Total number of rows updated by days-remaining recompute passes",
			},
		),

		rateLimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
			[]string{"key"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "start_time_timestamp",
				Help:      "Start time of the application as Unix timestamp",
			},
		),
	}

	collector.registerMetrics()
	collector.startTime.SetToCurrentTime()

	return collector
}

func (p *prometheusCollector) registerMetrics() {
	p.registry.MustRegister(
		p.certificatesTotal,
		p.acmeIssuanceTotal,
		p.acmeIssuanceDuration,
		p.cacheHitsTotal,
		p.cacheMissesTotal,
		p.eventsPublishedTotal,
		p.eventsConsumedTotal,
		p.poolImportTotal,
		p.daysRemainingRecomputeTotal,
		p.daysRemainingUpdatedTotal,
		p.rateLimitHitsTotal,
		p.startTime,
	)
}

func (p *prometheusCollector) RecordCertificateWrite(store, status string) {
	p.certificatesTotal.With(prometheus.Labels{"store": store, "status": status}).Inc()
}

func (p *prometheusCollector) RecordACMEIssuance(result string, duration time.Duration) {
	p.acmeIssuanceTotal.With(prometheus.Labels{"result": result}).Inc()
	p.acmeIssuanceDuration.With(prometheus.Labels{"result": result}).Observe(duration.Seconds())
}

func (p *prometheusCollector) RecordCacheHit(projection string) {
	p.cacheHitsTotal.With(prometheus.Labels{"projection": projection}).Inc()
}

func (p *prometheusCollector) RecordCacheMiss(projection string) {
	p.cacheMissesTotal.With(prometheus.Labels{"projection": projection}).Inc()
}

func (p *prometheusCollector) RecordEventPublished(eventType, outcome string) {
	p.eventsPublishedTotal.With(prometheus.Labels{"event_type": eventType, "outcome": outcome}).Inc()
}

func (p *prometheusCollector) RecordEventConsumed(eventType, outcome string) {
	p.eventsConsumedTotal.With(prometheus.Labels{"event_type": eventType, "outcome": outcome}).Inc()
}

func (p *prometheusCollector) RecordPoolImport(store, result string) {
	p.poolImportTotal.With(prometheus.Labels{"store": store, "result": result}).Inc()
}

func (p *prometheusCollector) RecordDaysRemainingRecompute(updated int) {
	p.daysRemainingRecomputeTotal.Inc()
	p.daysRemainingUpdatedTotal.Add(float64(updated))
}

func (p *prometheusCollector) RecordRateLimitHit(key string) {
	p.rateLimitHitsTotal.With(prometheus.Labels{"key": key}).Inc()
}

func (p *prometheusCollector) GetRegistry() *prometheus.Registry {
	return p.registry
}

func (p *prometheusCollector) StartMetricsServer(ctx context.Context, address string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	p.server = &http.Server{
		Addr:    address,
		Handler: mux,
	}

	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// metrics server failures don't bring down the application
		}
	}()

	return nil
}

func (p *prometheusCollector) StopMetricsServer(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.server == nil {
		return nil
	}

	err := p.server.Shutdown(ctx)
	p.server = nil
	return err
}

type metricsExporter struct {
	collector *prometheusCollector
	config    MetricsConfig
}

// NewMetricsExporter creates a new metrics exporter.
func NewMetricsExporter(collector MetricsCollector, config MetricsConfig) MetricsExporter {
	promCollector, ok := collector.(*prometheusCollector)
	if !ok {
		return &noopExporter{}
	}

	return &metricsExporter{
		collector: promCollector,
		config:    config,
	}
}

func (e *metricsExporter) Export(ctx context.Context) error {
	// Prometheus metrics are pulled via HTTP; nothing to push here.
	return nil
}

func (e *metricsExporter) Start(ctx context.Context) error {
	if !e.config.Enabled {
		return nil
	}

	address := e.config.Address
	if address == "" {
		address = ":9090"
	}

	return e.collector.StartMetricsServer(ctx, address)
}

func (e *metricsExporter) Stop(ctx context.Context) error {
	return e.collector.StopMetricsServer(ctx)
}

type noopExporter struct{}

func (e *noopExporter) Export(ctx context.Context) error { return nil }
func (e *noopExporter) Start(ctx context.Context) error  { return nil }
func (e *noopExporter) Stop(ctx context.Context) error   { return nil }
