package orchestrator

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/events"
)

// allStores is the fixed set cache.invalidate always carries on delete.
var allStores = []certificate.Store{certificate.StoreWebsites, certificate.StoreAPIs, certificate.StoreDatabase}

// Delete removes a certificate row by id. If the row is
// pool-backed and has a folder_name, folder.delete is emitted so the
// worker role can remove the on-disk folder.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	existing, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return certerrors.NewNotFoundError("certificate", id)
	}

	deleted, err := o.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return certerrors.NewNotFoundError("certificate", id)
	}

	if existing.Store.PoolBacked() && existing.FolderName != nil {
		payload := events.FolderDeletePayload{Store: string(existing.Store), FolderName: *existing.FolderName}
		if err := o.bus.Publish(ctx, events.EventFolderDelete, payload); err != nil {
			o.logger.Warn(ctx, "folder.delete publish failed")
		}
	}

	o.invalidate(ctx, allStores, "delete")
	return nil
}
