package orchestrator

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

// exportBatchSize bounds each page fetched by ExportStore so a large store
// is walked in bounded chunks rather than one unbounded SELECT.
const exportBatchSize = 500

// Export writes a certificate's PEMs to its pool folder and mirrors a
// sibling auto row for the target store so a later pool import is a no-op
// . The origin row is never mutated.
func (o *Orchestrator) Export(ctx context.Context, certificateID string) error {
	row, err := o.repo.GetByID(ctx, certificateID)
	if err != nil {
		return err
	}
	if row == nil {
		return certerrors.NewNotFoundError("certificate", certificateID)
	}

	targetStore, err := o.exportRow(ctx, *row)
	if err != nil {
		return err
	}
	o.invalidate(ctx, []certificate.Store{targetStore}, "export")
	return nil
}

// ExportStore bulk-exports every row in store that carries a certificate,
// private key, and folder name, writing each to the pool and mirroring an
// auto row the same way Export does for a single certificate. Rows missing
// any of those fields are skipped, not failed -- a partial store export
// still reports what it could do instead of aborting the whole batch on
// the first manual_add row with no certificate yet. Only pool-backed
// stores hold folder-keyed rows worth exporting.
func (o *Orchestrator) ExportStore(ctx context.Context, store certificate.Store) (exported, skipped int, err error) {
	if !store.PoolBacked() {
		return 0, 0, certerrors.NewValidationError("store", nil)
	}

	touched := map[certificate.Store]struct{}{}
	offset := 0
	for {
		page, err := o.repo.List(ctx, certificate.ListParams{Store: store, Offset: offset, Limit: exportBatchSize})
		if err != nil {
			return exported, skipped, err
		}
		for _, row := range page.Items {
			if row.Certificate == nil || *row.Certificate == "" ||
				row.PrivateKey == nil || *row.PrivateKey == "" ||
				row.FolderName == nil || *row.FolderName == "" {
				skipped++
				continue
			}
			targetStore, err := o.exportRow(ctx, row)
			if err != nil {
				return exported, skipped, err
			}
			touched[targetStore] = struct{}{}
			exported++
		}
		if len(page.Items) < exportBatchSize {
			break
		}
		offset += exportBatchSize
	}

	stores := make([]certificate.Store, 0, len(touched))
	for s := range touched {
		stores = append(stores, s)
	}
	if len(stores) > 0 {
		o.invalidate(ctx, stores, "export")
	}
	return exported, skipped, nil
}

// exportRow validates and writes a single row's PEMs to its target store's
// pool folder and mirrors it as an auto row, returning the store the
// mirror landed in. Callers own cache invalidation.
func (o *Orchestrator) exportRow(ctx context.Context, row certificate.Certificate) (certificate.Store, error) {
	if row.Certificate == nil || *row.Certificate == "" {
		return "", certerrors.NewValidationError("certificate", nil)
	}
	if row.PrivateKey == nil || *row.PrivateKey == "" {
		return "", certerrors.NewValidationError("private_key", nil)
	}
	if row.FolderName == nil || *row.FolderName == "" {
		return "", certerrors.NewValidationError("folder_name", nil)
	}

	targetStore := row.Store
	if !targetStore.PoolBacked() {
		targetStore = certificate.StoreWebsites
	}

	if err := o.writePoolFiles(targetStore, *row.FolderName, *row.Certificate, *row.PrivateKey); err != nil {
		return "", certerrors.WrapError(certerrors.ErrCodeTransport, "write exported certificate to pool", err)
	}

	certPEM := *row.Certificate
	keyPEM := *row.PrivateKey
	mirror := certificate.Certificate{
		Store:       targetStore,
		Domain:      row.Domain,
		FolderName:  row.FolderName,
		Source:      certificate.SourceAuto,
		Status:      certificate.StatusSuccess,
		Certificate: &certPEM,
		PrivateKey:  &keyPEM,
		Issuer:      row.Issuer,
		NotBefore:   row.NotBefore,
		NotAfter:    row.NotAfter,
		IsValid:     row.IsValid,
	}
	mirror.SANsRaw = row.SANsRaw

	if _, err := o.repo.CreateOrUpdate(ctx, mirror); err != nil {
		return "", err
	}
	return targetStore, nil
}
