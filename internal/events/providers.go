package events

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProviderSet is the Wire provider set for the event bus.
var ProviderSet = wire.NewSet(
	ProvideBus,
)

// ProvideBus constructs the sarama-backed Bus from BusConfig. When the bus
// is disabled (single-node/dev deployments) a no-op Bus is returned so
// callers never need a nil check.
func ProvideBus(cfg config.BusConfig, logger observability.Logger, metrics observability.MetricsCollector) (Bus, error) {
	if !cfg.Enabled {
		return NewNoopBus(logger), nil
	}
	return NewSaramaBus(cfg.BootstrapServers, cfg.RefreshTopic, cfg.CacheInvalidTopic, cfg.ConsumerGroup, logger, metrics)
}
