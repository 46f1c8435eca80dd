package orchestrator

import (
	"context"
	"strings"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// CreateManualAddInput is the user-supplied payload for a manual_add row.
type CreateManualAddInput struct {
	Store       certificate.Store
	Domain      string
	Certificate string
	PrivateKey  string
	FolderName  *string
	Email       *string
}

// Create inserts a user-uploaded (manual_add) certificate. The row
// starts in `process`; the caller's `certificate.parse` consumer transitions
// it to success/fail once the PEM is parsed.
func (o *Orchestrator) Create(ctx context.Context, in CreateManualAddInput) (*certificate.Certificate, error) {
	if !in.Store.Valid() {
		return nil, certerrors.NewValidationError("store", nil)
	}
	if in.Domain == "" {
		return nil, certerrors.NewValidationError("domain", nil)
	}
	if in.Certificate == "" || in.PrivateKey == "" {
		return nil, certerrors.NewValidationError("certificate/private_key", nil)
	}

	certPEM := in.Certificate
	keyPEM := in.PrivateKey
	row := certificate.Certificate{
		Store:       in.Store,
		Domain:      in.Domain,
		FolderName:  in.FolderName,
		Email:       in.Email,
		Certificate: &certPEM,
		PrivateKey:  &keyPEM,
	}

	created, err := o.repo.CreateManualAdd(ctx, row)
	if err != nil {
		return nil, err
	}

	o.invalidate(ctx, []certificate.Store{in.Store}, "create")
	if err := o.bus.Publish(ctx, events.EventCertificateParse, events.CertificateParsePayload{CertificateID: created.ID}); err != nil {
		o.logger.Warn(ctx, "certificate.parse publish failed", observability.Error(err))
	}
	return created, nil
}

// ApplyInput is the input to Apply.
type ApplyInput struct {
	Domain       string
	Email        string
	FolderName   string
	SANs         []string
	ForceRenewal bool
}

// Apply requests a new ACME-issued certificate. It always targets
// store=database; a later Export copies the result into a pool-backed
// store. Rejects with Conflict if another manual_apply row for the same
// domain is already `process`.
func (o *Orchestrator) Apply(ctx context.Context, in ApplyInput) (*certificate.Certificate, error) {
	if in.Domain == "" {
		return nil, certerrors.NewValidationError("domain", nil)
	}
	if in.FolderName == "" {
		return nil, certerrors.NewValidationError("folder_name", nil)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, certerrors.NewValidationError("email", nil)
	}

	existing, err := o.repo.GetByDomain(ctx, certificate.StoreDatabase, in.Domain, certificate.SourceManualApply)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == certificate.StatusProcess {
		return nil, certerrors.ErrAlreadyProcessing
	}

	folder := in.FolderName
	email := in.Email
	placeholder := certificate.Certificate{
		Store:      certificate.StoreDatabase,
		Domain:     in.Domain,
		FolderName: &folder,
		Email:      &email,
		Source:     certificate.SourceManualApply,
		Status:     certificate.StatusProcess,
	}
	row, err := o.repo.CreateOrUpdate(ctx, placeholder)
	if err != nil {
		return nil, err
	}

	preStatus := certificate.StatusFail
	if existing != nil {
		preStatus = existing.Status
	}

	id := row.ID
	o.spawn(func(bgCtx context.Context) {
		result, err := o.driver.Issue(bgCtx, acme.IssueRequest{
			Domain:       in.Domain,
			Email:        in.Email,
			SANs:         in.SANs,
			FolderName:   in.FolderName,
			ForceRenewal: in.ForceRenewal,
		})
		if err != nil {
			result = acme.IssueResult{Status: "fail", Error: err.Error()}
		}
		o.finishIssuance(bgCtx, id, preStatus, result, nil, []certificate.Store{certificate.StoreDatabase}, "apply")
	})

	return row, nil
}
