package orchestrator

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

// beginReapply reads the row, enforces the expected source, and moves it
// to `process` via the status gate: reads+transitions happen inside
// one repository call (SetStatus with cond), so two concurrent reapply
// calls for the same id can never both observe "not process".
func (o *Orchestrator) beginReapply(ctx context.Context, id string, wantSource certificate.Source) (*certificate.Certificate, certificate.Status, error) {
	existing, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if existing == nil {
		return nil, "", certerrors.NewNotFoundError("certificate", id)
	}
	if existing.Source != wantSource {
		return nil, "", certerrors.NewValidationError("source", nil)
	}
	if existing.Status == certificate.StatusProcess {
		return nil, "", certerrors.ErrAlreadyProcessing
	}

	preStatus, err := o.repo.SetStatus(ctx, id, certificate.StatusProcess, &existing.Status)
	if err != nil {
		return nil, "", err
	}
	return existing, preStatus, nil
}

// ReapplyAutoInput is the input to ReapplyAuto. Only email, sans,
// and force_renewal are accepted; domain/folder_name/store are taken from
// the existing row.
type ReapplyAutoInput struct {
	ID           string
	Email        string
	SANs         []string
	ForceRenewal bool
}

// ReapplyAuto re-issues a pool-imported (auto) certificate in place and
// writes the result back to its pool folder.
func (o *Orchestrator) ReapplyAuto(ctx context.Context, in ReapplyAutoInput) error {
	existing, preStatus, err := o.beginReapply(ctx, in.ID, certificate.SourceAuto)
	if err != nil {
		return err
	}
	if existing.FolderName == nil {
		return certerrors.NewValidationError("folder_name", nil)
	}

	folderName := *existing.FolderName
	store := existing.Store
	domain := existing.Domain
	id := in.ID

	o.spawn(func(bgCtx context.Context) {
		result, err := o.driver.Issue(bgCtx, acme.IssueRequest{
			Domain:       domain,
			Email:        in.Email,
			SANs:         in.SANs,
			FolderName:   folderName,
			ForceRenewal: in.ForceRenewal,
		})
		if err != nil {
			result = acme.IssueResult{Status: "fail", Error: err.Error()}
		}
		pool := &poolWriteTarget{store: store, folderName: folderName}
		o.finishIssuance(bgCtx, id, preStatus, result, pool, []certificate.Store{store}, "reapply_auto")
	})
	return nil
}

// ReapplyManualApplyInput is the input to ReapplyManualApply.
// Unlike ReapplyAuto, domain and folder_name may change.
type ReapplyManualApplyInput struct {
	ID           string
	Domain       string
	Email        string
	FolderName   string
	SANs         []string
	ForceRenewal bool
}

// ReapplyManualApply re-runs the standard apply flow with new inputs
// against an existing manual_apply row. Store is never changed; moving a
// certificate between stores is what Export is for.
func (o *Orchestrator) ReapplyManualApply(ctx context.Context, in ReapplyManualApplyInput) error {
	_, preStatus, err := o.beginReapply(ctx, in.ID, certificate.SourceManualApply)
	if err != nil {
		return err
	}

	domain := in.Domain
	folderName := in.FolderName
	id := in.ID

	if _, err := o.repo.UpdateByID(ctx, id, certificate.CertificatePatch{Domain: &domain, FolderName: &folderName}); err != nil {
		return err
	}

	o.spawn(func(bgCtx context.Context) {
		result, err := o.driver.Issue(bgCtx, acme.IssueRequest{
			Domain:       domain,
			Email:        in.Email,
			SANs:         in.SANs,
			FolderName:   folderName,
			ForceRenewal: in.ForceRenewal,
		})
		if err != nil {
			result = acme.IssueResult{Status: "fail", Error: err.Error()}
		}
		o.finishIssuance(bgCtx, id, preStatus, result, nil, []certificate.Store{certificate.StoreDatabase}, "reapply_manual_apply")
	})
	return nil
}

// ReapplyManualAddInput is the input to ReapplyManualAdd. Domain,
// folder_name, and store are all immutable; only certificate/private_key
// are rewritten.
type ReapplyManualAddInput struct {
	ID           string
	Email        string
	SANs         []string
	ForceRenewal bool
}

// ReapplyManualAdd re-issues a manual_add row's certificate in place,
// without touching the pool.
func (o *Orchestrator) ReapplyManualAdd(ctx context.Context, in ReapplyManualAddInput) error {
	existing, preStatus, err := o.beginReapply(ctx, in.ID, certificate.SourceManualAdd)
	if err != nil {
		return err
	}

	domain := existing.Domain
	store := existing.Store
	folderName := ""
	if existing.FolderName != nil {
		folderName = *existing.FolderName
	}
	id := in.ID

	o.spawn(func(bgCtx context.Context) {
		result, err := o.driver.Issue(bgCtx, acme.IssueRequest{
			Domain:       domain,
			Email:        in.Email,
			SANs:         in.SANs,
			FolderName:   folderName,
			ForceRenewal: in.ForceRenewal,
		})
		if err != nil {
			result = acme.IssueResult{Status: "fail", Error: err.Error()}
		}
		o.finishIssuance(bgCtx, id, preStatus, result, nil, []certificate.Store{store}, "reapply_manual_add")
	})
	return nil
}
