package orchestrator

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certcache"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProviderSet is the Wire provider set for the lifecycle orchestrator.
var ProviderSet = wire.NewSet(
	ProvideOrchestrator,
)

// ProvideOrchestrator adapts the concrete store/cache/bus/driver into the
// orchestrator's own narrow interfaces and constructs it.
func ProvideOrchestrator(
	repo certificate.Repository,
	cache certcache.Cache,
	bus events.Bus,
	driver acme.Driver,
	certCfg config.CertConfig,
	logger observability.Logger,
	metrics observability.MetricsCollector,
) *Orchestrator {
	return New(repo, cache, bus, driver, certCfg.CertsDir, certCfg.AutoRenewThreshold, logger, metrics)
}
