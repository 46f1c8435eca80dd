package certificate

import "context"

// Repository is the narrow persistence contract for certificate rows
// . Callers never touch SQL directly; every operation runs inside
// its own short transaction.
type Repository interface {
	List(ctx context.Context, params ListParams) (Page, error)
	GetByID(ctx context.Context, id string) (*Certificate, error)
	GetByDomain(ctx context.Context, store Store, domain string, source Source) (*Certificate, error)
	GetByFolderName(ctx context.Context, folderName string) (*Certificate, error)

	// CreateOrUpdate is the pool-import upsert primitive. It is keyed by
	// FolderName when non-nil, else by (Domain, Source). Source is never
	// overwritten on update.
	CreateOrUpdate(ctx context.Context, cert Certificate) (*Certificate, error)

	// CreateManualAdd inserts a user-uploaded record. Fails with Conflict
	// if (store, domain, manual_add) already exists.
	CreateManualAdd(ctx context.Context, cert Certificate) (*Certificate, error)

	// UpdateByID applies a partial update. Fails with NotFound if id is
	// absent.
	UpdateByID(ctx context.Context, id string, patch CertificatePatch) (*Certificate, error)

	// UpdateParseResult writes parsed PEM fields and the resulting status.
	UpdateParseResult(ctx context.Context, id string, result ParseResult) (bool, error)

	// UpdateAllDaysRemaining recomputes days_remaining/is_valid for every
	// row with a non-null not_after, returning counts and the updated rows
	// for scheduler follow-up.
	UpdateAllDaysRemaining(ctx context.Context) (updated int, total int, rows []Certificate, err error)

	DeleteByID(ctx context.Context, id string) (bool, error)

	Search(ctx context.Context, params SearchParams) (Page, error)

	// SetStatus moves a row into status, returning the row's status
	// immediately prior to the update so callers can restore it on
	// failure. cond, when non-empty, additionally requires the row's
	// current status to equal cond or the update is rejected with
	// Conflict; this is the "status != process" gate.
	SetStatus(ctx context.Context, id string, next Status, cond *Status) (previous Status, err error)
}

// CertificatePatch is a partial update; nil fields are left unchanged.
type CertificatePatch struct {
	FolderName       *string
	Store            *Store
	Domain           *string
	Email            *string
	Certificate      *string
	PrivateKey       *string
	SANs             *[]string
	Issuer           *string
	Status           *Status
	LastErrorMessage *string
}
