//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certcache"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/challenge"
	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/httpapi"
	"github.com/nfxvault/tlscertd/internal/middleware"
	"github.com/nfxvault/tlscertd/internal/observability"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
	"github.com/nfxvault/tlscertd/internal/scheduler"
	"github.com/nfxvault/tlscertd/internal/server"
)

// providerSet is the complete C1-C5 + scheduler + challenge + httpapi
// provider graph.
var providerSet = wire.NewSet(
	config.ProvideConfig,
	config.ProvideCertConfigFromConfig,
	config.ProvideDatabaseConfigFromConfig,
	config.ProvideCacheConfigFromConfig,
	config.ProvideBusConfigFromConfig,
	config.ProvideScheduleConfigFromConfig,
	config.ProvideLoggingConfigFromConfig,
	config.ProvideMetricsConfigFromConfig,

	observability.ProvideLogger,
	observability.ProvideMetricsCollector,

	certificate.ProviderSet,
	certcache.ProviderSet,
	acme.ProviderSet,
	events.ProviderSet,
	orchestrator.ProviderSet,
	scheduler.ProviderSet,
	challenge.ProviderSet,
	httpapi.ProviderSet,
	middleware.ProviderSet,
	server.ProviderSet,
)

// InitializeAPIApplication builds the API role's object graph: the
// orchestrator (write path + event producer), the HTTP handler, the
// challenge endpoint, and the server manager that serves them both. This
// function's body is replaced by `wire gen`'s output in wire_gen.go; it is
// never compiled into the binary (build tag wireinject).
func InitializeAPIApplication() (*APIApplication, error) {
	wire.Build(
		providerSet,
		wire.Struct(new(APIApplication), "*"),
	)
	return nil, nil
}

// InitializeWorkerApplication builds the worker role's object graph: the
// orchestrator's event handlers wired to the bus consumer, plus the weekly
// pool-import/daily auto-renewal scheduler. Replaced by `wire gen`'s
// output in wire_gen.go.
func InitializeWorkerApplication() (*WorkerApplication, error) {
	wire.Build(
		providerSet,
		wire.Struct(new(WorkerApplication), "*"),
	)
	return nil, nil
}
