package challenge

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProviderSet is the Wire provider set for the ACME challenge endpoint.
var ProviderSet = wire.NewSet(
	ProvideHandler,
)

// ProvideHandler constructs the Handler from CertConfig's challenge dir.
func ProvideHandler(cfg config.CertConfig, logger observability.Logger) *Handler {
	return New(cfg.ACMEChallengeDir, logger)
}
