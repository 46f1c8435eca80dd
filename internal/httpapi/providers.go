package httpapi

import (
	"net/http"

	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/certcache"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

// ProviderSet is the Wire provider set for the HTTP API role.
var ProviderSet = wire.NewSet(
	ProvideHandler,
	ProvideRoutes,
)

// ProvideHandler adapts the concrete C1/C2/C4/C5 implementations into this
// package's narrow interfaces.
func ProvideHandler(
	orch *orchestrator.Orchestrator,
	repo certificate.Repository,
	cache certcache.Cache,
	bus events.Bus,
	logger observability.Logger,
	metrics observability.MetricsCollector,
) *Handler {
	return New(orch, repo, cache, bus, logger, metrics)
}

// ProvideRoutes builds the final http.Handler for the API role's server.
func ProvideRoutes(h *Handler) http.Handler {
	return h.Routes()
}
