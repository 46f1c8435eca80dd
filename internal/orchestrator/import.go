package orchestrator

import (
	"os"
	"path/filepath"
	"strings"

	"context"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// Refresh imports every pool folder under {certs_dir}/{Store} into the
// store. trigger is advisory metadata threaded through to the
// emitted cache.invalidate event, and is also the loop guard: a refresh
// driven by an `operation.refresh` event (trigger == events.TriggerEvent)
// emits no cache.invalidate. Refresh never emits operation.refresh.
func (o *Orchestrator) Refresh(ctx context.Context, store certificate.Store, trigger string) error {
	if !store.PoolBacked() {
		return certerrors.NewValidationError("store", nil)
	}

	dir := o.poolDir(store)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return certerrors.WrapError(certerrors.ErrCodeTransport, "read pool directory", err)
		}
	}

	failures := 0
	imported := 0
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		folderName := entry.Name()
		folderPath := filepath.Join(dir, folderName)

		certBytes, err := os.ReadFile(filepath.Join(folderPath, "cert.crt"))
		if err != nil {
			continue // missing cert.crt: not a complete pair, skip silently
		}
		keyBytes, err := os.ReadFile(filepath.Join(folderPath, "key.key"))
		if err != nil {
			continue // missing key.key
		}

		result, cn, err := certificate.ParseCertificatePEM(string(certBytes))
		if err != nil {
			failures++
			o.logger.Warn(ctx, "failed to parse pool certificate", observability.Error(err), observability.FolderName(folderName))
			continue
		}
		if cn == "" {
			continue
		}

		certStr := string(certBytes)
		keyStr := string(keyBytes)
		folder := folderName
		row := certificate.Certificate{
			Store:         store,
			Domain:        cn,
			FolderName:    &folder,
			Source:        certificate.SourceAuto,
			Status:        certificate.StatusSuccess,
			Certificate:   &certStr,
			PrivateKey:    &keyStr,
			Issuer:        &result.Issuer,
			NotBefore:     &result.NotBefore,
			NotAfter:      &result.NotAfter,
			IsValid:       &result.IsValid,
			DaysRemaining: &result.DaysRemaining,
		}
		row.SetSANs(result.SANs)

		if _, err := o.repo.CreateOrUpdate(ctx, row); err != nil {
			failures++
			o.logger.Error(ctx, err, "failed to upsert imported certificate", observability.FolderName(folderName))
			continue
		}
		imported++
	}

	o.metrics.RecordPoolImport(string(store), outcomeFor(failures))

	if trigger != events.TriggerEvent {
		o.invalidate(ctx, []certificate.Store{store}, trigger)
	}

	o.logger.Info(ctx, "pool import complete",
		observability.Store(string(store)), observability.Int("imported", imported), observability.Int("failures", failures))
	return nil
}

func outcomeFor(failures int) string {
	if failures > 0 {
		return "partial"
	}
	return "success"
}
