package acme

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProviderSet is the Wire provider set for the ACME driver.
var ProviderSet = wire.NewSet(
	ProvideDriver,
)

// ProvideDriver constructs the certbot-backed Driver from CertConfig.
func ProvideDriver(cfg config.CertConfig, logger observability.Logger, metrics observability.MetricsCollector) (Driver, error) {
	return NewCertbotDriver(
		cfg.ACMEChallengeDir,
		cfg.CertsDir,
		cfg.CertbotBinary,
		cfg.MaxWaitTime,
		logger,
		metrics,
		WithStaging(cfg.Staging),
	)
}
