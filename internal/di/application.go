// Package di wires the certificate lifecycle manager's two deployment
// roles (API, Worker) from the same C1-C5 + scheduler + challenge +
// httpapi object graph, using google/wire's provider-set convention.
package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

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

// APIApplication is the API role's wired object graph: HTTP handler plus
// the ACME HTTP-01 challenge endpoint behind one server manager, and the
// orchestrator as event producer + write path.
type APIApplication struct {
	Config          *config.Config
	Logger          observability.Logger
	Metrics         observability.MetricsCollector
	DB              *sqlx.DB
	RedisClient     *redis.Client
	Repo            certificate.Repository
	Cache           certcache.Cache
	Bus             events.Bus
	Driver          acme.Driver
	Orchestrator    *orchestrator.Orchestrator
	Handler         *httpapi.Handler
	Challenge       *challenge.Handler
	MiddlewareChain middleware.Chain
	ServerManager   server.ServerManager
}

// Start brings up the HTTP listener and, if configured, runs the one-time
// pool import for each pool-backed store before serving traffic.
func (a *APIApplication) Start(ctx context.Context) error {
	if a.Config.Cert.ReadOnStartup {
		for _, store := range []certificate.Store{certificate.StoreWebsites, certificate.StoreAPIs} {
			if err := a.Orchestrator.Refresh(ctx, store, "startup"); err != nil {
				a.Logger.Error(ctx, err, "startup pool import failed", observability.Store(string(store)))
			}
		}
	}

	httpServer := server.NewHTTPServer(server.ConfigFromMain(*a.Config), a.routes(), a.Logger)
	if err := a.ServerManager.AddServer("http", httpServer); err != nil {
		return fmt.Errorf("register API http server: %w", err)
	}
	if err := a.ServerManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start API servers: %w", err)
	}
	a.Logger.Info(ctx, "API role started", observability.String("address", a.Config.Server.GetServerAddress()))
	return nil
}

// Stop drains the HTTP listener, waits for in-flight apply/reapply
// background tasks, and closes the shared bus/cache/database connections.
func (a *APIApplication) Stop(ctx context.Context) error {
	var firstErr error
	if err := a.ServerManager.StopAll(ctx); err != nil {
		firstErr = err
	}
	if err := a.Orchestrator.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Bus.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// routes composes the certificate HTTP API with the ACME HTTP-01
// challenge endpoint on a single chi mux, wrapped in the shared
// recovery/logging/security/CORS/rate-limit middleware chain.
func (a *APIApplication) routes() http.Handler {
	r := chi.NewRouter()
	a.Challenge.Mount(r)
	r.Mount("/", a.Handler.Routes())
	return a.MiddlewareChain.Then(r)
}

// WorkerApplication is the Worker role's wired object graph: the
// orchestrator's event handlers subscribed to the bus, plus the weekly
// pool-import/daily auto-renewal scheduler.
type WorkerApplication struct {
	Config       *config.Config
	Logger       observability.Logger
	Metrics      observability.MetricsCollector
	DB           *sqlx.DB
	RedisClient  *redis.Client
	Repo         certificate.Repository
	Cache        certcache.Cache
	Bus          events.Bus
	Driver       acme.Driver
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// Run starts the scheduler and blocks consuming events until ctx is
// cancelled. Since the worker role has no HTTP surface of its own, it
// owns the whole foreground loop instead of handing it to a server
// manager.
func (w *WorkerApplication) Run(ctx context.Context) error {
	if err := w.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	w.Logger.Info(ctx, "worker role started")

	err := w.Bus.Subscribe(ctx, w.Orchestrator.Handlers())

	if stopErr := w.Scheduler.Stop(); stopErr != nil {
		w.Logger.Error(ctx, stopErr, "scheduler stop failed")
	}
	return err
}

// Stop closes the shared bus/cache/database connections. Run returning
// (on ctx cancellation) already stopped the scheduler and consumer loop.
func (w *WorkerApplication) Stop(ctx context.Context) error {
	var firstErr error
	if err := w.Orchestrator.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := w.Bus.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if w.RedisClient != nil {
		if err := w.RedisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.DB != nil {
		if err := w.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
