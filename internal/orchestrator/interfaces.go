// Package orchestrator implements the lifecycle orchestrator (C5): the
// decision logic tying the certificate store, cache, event bus, and ACME
// driver together. It depends only on interfaces it defines itself,
// structurally satisfied by internal/certificate, internal/certcache,
// internal/events, and internal/acme, so none of those packages need to
// know this one exists.
package orchestrator

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
)

// Repository is the subset of internal/certificate.Repository the
// orchestrator depends on. Satisfied structurally; the orchestrator never
// imports a concrete store implementation.
type Repository interface {
	List(ctx context.Context, params certificate.ListParams) (certificate.Page, error)
	GetByID(ctx context.Context, id string) (*certificate.Certificate, error)
	GetByDomain(ctx context.Context, store certificate.Store, domain string, source certificate.Source) (*certificate.Certificate, error)
	GetByFolderName(ctx context.Context, folderName string) (*certificate.Certificate, error)
	CreateOrUpdate(ctx context.Context, cert certificate.Certificate) (*certificate.Certificate, error)
	CreateManualAdd(ctx context.Context, cert certificate.Certificate) (*certificate.Certificate, error)
	UpdateByID(ctx context.Context, id string, patch certificate.CertificatePatch) (*certificate.Certificate, error)
	UpdateParseResult(ctx context.Context, id string, result certificate.ParseResult) (bool, error)
	UpdateAllDaysRemaining(ctx context.Context) (updated int, total int, rows []certificate.Certificate, err error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, params certificate.SearchParams) (certificate.Page, error)
	SetStatus(ctx context.Context, id string, next certificate.Status, cond *certificate.Status) (previous certificate.Status, err error)
}

// Cache is the subset of internal/certcache.Cache the orchestrator depends
// on: invalidation only. Reads/writes of the list/detail projections
// happen in internal/httpapi, not here.
type Cache interface {
	InvalidateStore(ctx context.Context, store certificate.Store) error
}

// Bus is the subset of internal/events.Bus the orchestrator depends on:
// publishing only. Subscribing and dispatch live in the worker role, which
// wires this orchestrator's exported handler methods into a
// map[events.EventType]events.Handler.
type Bus interface {
	Publish(ctx context.Context, eventType events.EventType, payload interface{}) error
}

// Driver is internal/acme.Driver, re-declared locally per the package's
// no-concrete-dependency rule.
type Driver interface {
	Issue(ctx context.Context, req acme.IssueRequest) (acme.IssueResult, error)
}
