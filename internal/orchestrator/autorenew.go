package orchestrator

import (
	"context"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// AutoRenewResult summarizes one pass of the auto-renewal loop, for the
// scheduler to log.
type AutoRenewResult struct {
	Considered int
	Renewed    int
	Failed     int
	Skipped    int
}

// AutoRenew runs the daily auto-renewal loop. Unlike
// Apply/Reapply*, issuance here is synchronous in the caller's goroutine:
// the caller is always the scheduler's own daily job, not an inbound HTTP
// request, so there is no request latency to protect.
func (o *Orchestrator) AutoRenew(ctx context.Context) (AutoRenewResult, error) {
	_, _, rows, err := o.repo.UpdateAllDaysRemaining(ctx)
	if err != nil {
		return AutoRenewResult{}, err
	}
	o.metrics.RecordDaysRemainingRecompute(len(rows))

	var result AutoRenewResult
	for _, row := range rows {
		if row.Source != certificate.SourceAuto {
			continue
		}
		if row.DaysRemaining == nil || *row.DaysRemaining >= o.renewThreshold {
			continue
		}
		result.Considered++

		if row.Store == certificate.StoreDatabase {
			o.logger.Warn(ctx, "auto-renewal skipped certificate stored in database, auto source requires a pool-backed store",
				observability.CertificateID(row.ID), observability.Domain(row.Domain))
			result.Skipped++
			continue
		}

		if o.renewOne(ctx, row) {
			result.Renewed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// renewOne renews a single eligible row, synchronously. It reports success.
func (o *Orchestrator) renewOne(ctx context.Context, row certificate.Certificate) bool {
	preStatus, err := o.repo.SetStatus(ctx, row.ID, certificate.StatusProcess, &row.Status)
	if err != nil {
		o.logger.Error(ctx, err, "failed to mark certificate for auto-renewal", observability.CertificateID(row.ID))
		return false
	}

	folderName := ""
	if row.FolderName != nil {
		folderName = *row.FolderName
	}
	email := ""
	if row.Email != nil {
		email = *row.Email
	}

	driverResult, err := o.driver.Issue(ctx, acme.IssueRequest{
		Domain:       row.Domain,
		Email:        email,
		SANs:         row.SANs(),
		FolderName:   folderName,
		ForceRenewal: true,
	})
	if err != nil {
		driverResult = acme.IssueResult{Status: "fail", Error: err.Error()}
	}

	if !driverResult.Success {
		if _, err := o.repo.SetStatus(ctx, row.ID, preStatus, nil); err != nil {
			o.logger.Error(ctx, err, "failed to restore certificate status after failed auto-renewal", observability.CertificateID(row.ID))
		}
		msg := driverResult.Error
		if _, err := o.repo.UpdateByID(ctx, row.ID, certificate.CertificatePatch{LastErrorMessage: &msg}); err != nil {
			o.logger.Error(ctx, err, "failed to record auto-renewal error", observability.CertificateID(row.ID))
		}
		o.metrics.RecordCertificateWrite(string(row.Store), "fail")
		o.metrics.RecordACMEIssuance("fail", 0)
		return false
	}

	certPEM := driverResult.Certificate
	keyPEM := driverResult.PrivateKey
	if _, err := o.repo.UpdateByID(ctx, row.ID, certificate.CertificatePatch{Certificate: &certPEM, PrivateKey: &keyPEM}); err != nil {
		o.logger.Error(ctx, err, "failed to persist auto-renewed certificate", observability.CertificateID(row.ID))
		return false
	}

	parsed, _, err := certificate.ParseCertificatePEM(certPEM)
	if err != nil {
		parsed = certificate.ParseResult{Status: certificate.StatusFail, ErrorMessage: err.Error()}
	} else {
		parsed.Status = certificate.StatusSuccess
	}
	if _, err := o.repo.UpdateParseResult(ctx, row.ID, parsed); err != nil {
		o.logger.Error(ctx, err, "failed to persist auto-renewed certificate metadata", observability.CertificateID(row.ID))
		return false
	}

	// The renewed PEMs reach the pool folder via certificate.export,
	// not a direct filesystem write here -- the worker role owns that.
	if err := o.bus.Publish(ctx, events.EventCertificateExport, events.CertificateExportPayload{CertificateID: row.ID}); err != nil {
		o.logger.Warn(ctx, "certificate.export publish failed after auto-renewal", observability.Error(err), observability.CertificateID(row.ID))
	}

	o.metrics.RecordCertificateWrite(string(row.Store), "success")
	o.metrics.RecordACMEIssuance("success", 0)
	return true
}
