package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// defaultBackgroundCapacity bounds concurrent apply/reapply/auto-renew
// background tasks so a burst of requests cannot exhaust subprocess slots
// or file descriptors.
const defaultBackgroundCapacity = 64

// Orchestrator is the lifecycle orchestrator (C5).
type Orchestrator struct {
	repo           Repository
	cache          Cache
	bus            Bus
	driver         Driver
	certsDir       string
	renewThreshold int
	logger         observability.Logger
	metrics        observability.MetricsCollector

	sem chan struct{}
	wg  sync.WaitGroup
}

// New constructs the orchestrator. certsDir is the pool root.
// renewThreshold is the days_remaining cutoff below which an
// auto-sourced certificate is eligible for auto-renewal.
func New(repo Repository, cache Cache, bus Bus, driver Driver, certsDir string, renewThreshold int, logger observability.Logger, metrics observability.MetricsCollector) *Orchestrator {
	return &Orchestrator{
		repo:           repo,
		cache:          cache,
		bus:            bus,
		driver:         driver,
		certsDir:       certsDir,
		renewThreshold: renewThreshold,
		logger:         logger,
		metrics:        metrics,
		sem:            make(chan struct{}, defaultBackgroundCapacity),
	}
}

// Shutdown waits for in-flight background tasks (apply/reapply/auto-renew)
// to finish, or until ctx is cancelled.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn in a bounded background goroutine, acquiring a semaphore
// slot before running and releasing it on return. Blocks the caller only
// long enough to acquire the slot, never for the duration of fn.
func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.wg.Add(1)
	o.sem <- struct{}{}
	go func() {
		defer o.wg.Done()
		defer func() { <-o.sem }()
		// Background tasks must not be cancelled by the inbound request's
		// context; they run to completion or to the driver's own timeout.
		fn(context.Background())
	}()
}

func (o *Orchestrator) poolDir(store certificate.Store) string {
	return filepath.Join(o.certsDir, store.Capitalized())
}

// writePoolFiles overwrites {certs_dir}/{Store}/{folderName}/{cert.crt,key.key},
// creating the folder if needed.
func (o *Orchestrator) writePoolFiles(store certificate.Store, folderName, certPEM, keyPEM string) error {
	dir := filepath.Join(o.poolDir(store), folderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pool folder %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cert.crt"), []byte(certPEM), 0o644); err != nil {
		return fmt.Errorf("write cert.crt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "key.key"), []byte(keyPEM), 0o600); err != nil {
		return fmt.Errorf("write key.key: %w", err)
	}
	return nil
}

// invalidate emits cache.invalidate for the given stores and, best-effort,
// invalidates the cache directly too -- the event is the system of record
// (so other replicas pick it up), the direct call shortens the window for
// the process that just wrote.
func (o *Orchestrator) invalidate(ctx context.Context, stores []certificate.Store, trigger string) {
	names := make([]string, len(stores))
	for i, s := range stores {
		names[i] = string(s)
		if err := o.cache.InvalidateStore(ctx, s); err != nil {
			o.logger.Warn(ctx, "direct cache invalidation failed", observability.Error(err), observability.Store(string(s)))
		}
	}
	payload := events.CacheInvalidatePayload{Stores: names, Trigger: trigger}
	if err := o.bus.Publish(ctx, events.EventCacheInvalidate, payload); err != nil {
		o.logger.Warn(ctx, "cache.invalidate publish failed", observability.Error(err))
	}
}

// poolWriteTarget identifies where a successful issuance's PEMs should
// additionally be written on disk; nil means "database only".
type poolWriteTarget struct {
	store      certificate.Store
	folderName string
}

// finishIssuance applies a driver result to a row that was moved to
// `process` before the (possibly long-running) ACME call: on failure the
// status is restored to preStatus and the error recorded; on success the
// PEMs and parsed metadata are persisted, the pool is optionally updated,
// and cache.invalidate is emitted.
func (o *Orchestrator) finishIssuance(ctx context.Context, id string, preStatus certificate.Status, result acme.IssueResult, pool *poolWriteTarget, invalidateStores []certificate.Store, trigger string) {
	if !result.Success {
		if _, err := o.repo.SetStatus(ctx, id, preStatus, nil); err != nil {
			o.logger.Error(ctx, err, "failed to restore certificate status after failed issuance", observability.CertificateID(id))
		}
		msg := result.Error
		if _, err := o.repo.UpdateByID(ctx, id, certificate.CertificatePatch{LastErrorMessage: &msg}); err != nil {
			o.logger.Error(ctx, err, "failed to record issuance error", observability.CertificateID(id))
		}
		o.metrics.RecordCertificateWrite(string(invalidateStoreOrDatabase(invalidateStores)), "fail")
		return
	}

	certPEM := result.Certificate
	keyPEM := result.PrivateKey
	if _, err := o.repo.UpdateByID(ctx, id, certificate.CertificatePatch{Certificate: &certPEM, PrivateKey: &keyPEM}); err != nil {
		o.logger.Error(ctx, err, "failed to persist issued certificate", observability.CertificateID(id))
		return
	}

	parsed, _, err := certificate.ParseCertificatePEM(certPEM)
	if err != nil {
		parsed = certificate.ParseResult{Status: certificate.StatusFail, ErrorMessage: err.Error()}
	} else {
		parsed.Status = certificate.StatusSuccess
	}
	if _, err := o.repo.UpdateParseResult(ctx, id, parsed); err != nil {
		o.logger.Error(ctx, err, "failed to persist parsed certificate metadata", observability.CertificateID(id))
		return
	}

	if pool != nil {
		if err := o.writePoolFiles(pool.store, pool.folderName, certPEM, keyPEM); err != nil {
			o.logger.Error(ctx, err, "failed to write certificate back to pool", observability.CertificateID(id), observability.FolderName(pool.folderName))
		}
	}

	o.invalidate(ctx, invalidateStores, trigger)
	o.metrics.RecordCertificateWrite(string(invalidateStoreOrDatabase(invalidateStores)), "success")
}

func invalidateStoreOrDatabase(stores []certificate.Store) certificate.Store {
	if len(stores) == 0 {
		return certificate.StoreDatabase
	}
	return stores[0]
}

func statusPtr(s certificate.Status) *certificate.Status { return &s }
