// Package httpapi is the thin HTTP adapter in front of the
// certificate lifecycle orchestrator: request decoding, response encoding,
// and error-to-status translation only. It never contains lifecycle
// decision logic -- that all lives in internal/orchestrator.
package httpapi

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/certcache"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

// Repository is the read-path subset of internal/certificate.Repository
// this package depends on. Reads bypass the orchestrator entirely.
type Repository interface {
	List(ctx context.Context, params certificate.ListParams) (certificate.Page, error)
	GetByID(ctx context.Context, id string) (*certificate.Certificate, error)
	Search(ctx context.Context, params certificate.SearchParams) (certificate.Page, error)
}

// Cache is the read-through projection cache this package consults before
// Repository and populates after a miss.
type Cache interface {
	GetList(ctx context.Context, store certificate.Store, offset, limit int) (*certcache.ListEntry, error)
	SetList(ctx context.Context, store certificate.Store, offset, limit int, entry certcache.ListEntry) error
	GetDetail(ctx context.Context, store certificate.Store, domain string) (*certcache.DetailEntry, error)
	SetDetail(ctx context.Context, store certificate.Store, domain string, entry certcache.DetailEntry) error
}

// Bus is the publish-only subset of internal/events.Bus. Refresh and
// InvalidateCache are "emit only" at this layer: the HTTP adapter
// never does the pool scan or cache delete itself, it hands the event to
// the worker role.
type Bus interface {
	Publish(ctx context.Context, eventType events.EventType, payload interface{}) error
}

// Orchestrator is the write-path subset of *orchestrator.Orchestrator this
// package drives. Declared locally, satisfied structurally, so this
// package never needs a second orchestrator-facing interface to stay in
// sync with internal/orchestrator's own exported surface.
type Orchestrator interface {
	Create(ctx context.Context, in orchestrator.CreateManualAddInput) (*certificate.Certificate, error)
	UpdateManualAdd(ctx context.Context, in orchestrator.UpdateManualAddInput) (*certificate.Certificate, error)
	UpdateManualApply(ctx context.Context, in orchestrator.UpdateManualApplyInput) (*certificate.Certificate, error)
	Delete(ctx context.Context, id string) error
	Apply(ctx context.Context, in orchestrator.ApplyInput) (*certificate.Certificate, error)
	ReapplyAuto(ctx context.Context, in orchestrator.ReapplyAutoInput) error
	ReapplyManualApply(ctx context.Context, in orchestrator.ReapplyManualApplyInput) error
	ReapplyManualAdd(ctx context.Context, in orchestrator.ReapplyManualAddInput) error
	ExportStore(ctx context.Context, store certificate.Store) (exported, skipped int, err error)
	ListDirectory(store certificate.Store, subpath string) ([]orchestrator.DirEntry, error)
	ReadFile(store certificate.Store, path string) (orchestrator.PoolFile, error)
}
