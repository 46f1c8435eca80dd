package orchestrator

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/events"
)

// UpdateManualApplyInput is the restricted partial update allowed on a
// manual_apply row.
type UpdateManualApplyInput struct {
	ID         string
	FolderName *string
	Store      *certificate.Store
}

// UpdateManualApply applies the restricted edit set allowed on
// manual_apply rows.
func (o *Orchestrator) UpdateManualApply(ctx context.Context, in UpdateManualApplyInput) (*certificate.Certificate, error) {
	existing, err := o.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, certerrors.NewNotFoundError("certificate", in.ID)
	}
	if existing.Source == certificate.SourceAuto {
		return nil, certerrors.NewValidationError("source", nil)
	}
	if existing.Source != certificate.SourceManualApply {
		return nil, certerrors.NewValidationError("source", nil)
	}
	if in.Store != nil && !in.Store.Valid() {
		return nil, certerrors.NewValidationError("store", nil)
	}

	patch := certificate.CertificatePatch{FolderName: in.FolderName, Store: in.Store}
	updated, err := o.repo.UpdateByID(ctx, in.ID, patch)
	if err != nil {
		return nil, err
	}

	o.invalidate(ctx, affectedStores(existing.Store, updated.Store), "update")
	return updated, nil
}

// UpdateManualAddInput is the unrestricted partial update allowed on a
// manual_add row.
type UpdateManualAddInput struct {
	ID          string
	Store       *certificate.Store
	Domain      *string
	FolderName  *string
	Email       *string
	Certificate *string
	PrivateKey  *string
}

// UpdateManualAdd applies an arbitrary edit to a manual_add row.
func (o *Orchestrator) UpdateManualAdd(ctx context.Context, in UpdateManualAddInput) (*certificate.Certificate, error) {
	existing, err := o.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, certerrors.NewNotFoundError("certificate", in.ID)
	}
	if existing.Source == certificate.SourceAuto {
		return nil, certerrors.NewValidationError("source", nil)
	}
	if existing.Source != certificate.SourceManualAdd {
		return nil, certerrors.NewValidationError("source", nil)
	}

	patch := certificate.CertificatePatch{
		Store:      in.Store,
		Domain:     in.Domain,
		FolderName: in.FolderName,
		Email:      in.Email,
	}

	touchedCertificate := in.Certificate != nil || in.PrivateKey != nil
	if in.Certificate != nil {
		patch.Certificate = in.Certificate
	}
	if in.PrivateKey != nil {
		patch.PrivateKey = in.PrivateKey
	}
	if touchedCertificate {
		patch.Status = statusPtr(certificate.StatusProcess)
	}

	updated, err := o.repo.UpdateByID(ctx, in.ID, patch)
	if err != nil {
		return nil, err
	}

	o.invalidate(ctx, affectedStores(existing.Store, updated.Store), "update")
	if touchedCertificate {
		if err := o.bus.Publish(ctx, events.EventCertificateParse, events.CertificateParsePayload{CertificateID: updated.ID}); err != nil {
			o.logger.Warn(ctx, "certificate.parse publish failed")
		}
	}
	return updated, nil
}

func affectedStores(before, after certificate.Store) []certificate.Store {
	if before == after {
		return []certificate.Store{before}
	}
	return []certificate.Store{before, after}
}
