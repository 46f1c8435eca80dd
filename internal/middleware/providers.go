package middleware

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProviderSet is the Wire provider set for the API middleware chain.
var ProviderSet = wire.NewSet(
	CreateCompleteMiddlewareChain,
)

const (
	defaultRequestsPerSecond = 100
	defaultBurst             = 200
)

// CreateCompleteMiddlewareChain assembles the full API-role stack.
// Order matters: recovery wraps everything, logging sees every request
// including rate-limited ones, and rate limiting runs innermost so the
// cheap header middleware never pays for it.
func CreateCompleteMiddlewareChain(
	cfg *config.Config,
	logger observability.Logger,
	metrics observability.MetricsCollector,
) Chain {
	limiter := NewClientLimiter(defaultRequestsPerSecond, defaultBurst)
	return NewChain(
		Recovery(logger),
		RequestLogging(logger),
		SecurityHeaders(DefaultSecurityPolicy()),
		CORS(DefaultCORSPolicy()),
		RateLimit(limiter, logger, metrics),
	)
}
